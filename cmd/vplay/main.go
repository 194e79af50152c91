// Package main provides the vplay command-line frontend.
/*
 * Copyright (c) 2026, vplay authors. All rights reserved.
 */
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/golang/glog"
	"github.com/urfave/cli"

	"github.com/vplay/vplay/cmn"
	"github.com/vplay/vplay/spirv"
	"github.com/vplay/vplay/vkctx"
	"github.com/vplay/vplay/vkmem"
)

func main() {
	app := cli.NewApp()
	app.Name = "vplay"
	app.Usage = "Vulkan video playback toolkit"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "path to a JSON or YAML configuration file",
		},
		cli.IntFlag{
			Name:  "verbosity",
			Usage: "log verbosity (overrides the config)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:   "probe",
			Usage:  "bring up a Vulkan device and report its memory types",
			Action: probeHandler,
		},
		{
			Name:   "precompile",
			Usage:  "warm the compiled-shader cache from a shader directory",
			Action: precompileHandler,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "shaders",
					Usage: "directory with *.vert/*.frag/*.comp sources (overrides the config)",
				},
			},
		},
	}
	defer glog.Flush()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "vplay: %v\n", err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) (*cmn.Config, error) {
	var (
		cfg *cmn.Config
		err error
	)
	if path := c.GlobalString("config"); path != "" {
		cfg, err = cmn.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = cmn.DefaultConfig()
	}
	if c.GlobalIsSet("verbosity") {
		cfg.Verbosity = c.GlobalInt("verbosity")
	}
	// glog registers on the default FlagSet; urfave/cli owns os.Args
	flag.CommandLine.Parse([]string{})
	flag.Set("logtostderr", "true")
	flag.Set("v", strconv.Itoa(cfg.Verbosity))
	return cfg, nil
}

func probeHandler(c *cli.Context) error {
	if _, err := setup(c); err != nil {
		return err
	}
	ctx, err := vkctx.NewContext("vplay")
	if err != nil {
		return err
	}
	defer ctx.Destroy()

	fmt.Printf("device: %s\n", ctx.GPUName())
	fmt.Printf("bufferImageGranularity: %d\n", ctx.Device.BufferImageGranularity())
	for _, t := range ctx.Device.MemoryTypes() {
		fmt.Printf("  type %2d  heap %d  %s\n", t.Index, t.HeapIndex, propFlagsString(t.Flags))
	}

	mm := vkmem.New(ctx.Device)
	defer mm.Terminate()
	st := mm.Stats()
	fmt.Printf("allocator ready: %d slabs, %s reserved\n", st.Slabs, cmn.B2S(st.Reserved, 1))
	return nil
}

func propFlagsString(f vkmem.MemPropFlags) string {
	s := ""
	for _, b := range []struct {
		bit  vkmem.MemPropFlags
		name string
	}{
		{vkmem.MemDeviceLocal, "device-local"},
		{vkmem.MemHostVisible, "host-visible"},
		{vkmem.MemHostCoherent, "host-coherent"},
		{vkmem.MemHostCached, "host-cached"},
	} {
		if f&b.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += b.name
		}
	}
	if s == "" {
		s = "-"
	}
	return s
}

func precompileHandler(c *cli.Context) error {
	cfg, err := setup(c)
	if err != nil {
		return err
	}
	dir := c.String("shaders")
	if dir == "" {
		dir = cfg.ShaderDir
	}
	if dir == "" {
		return fmt.Errorf("no shader directory: pass --shaders or set shader_dir in the config")
	}

	comp, err := spirv.Init(cfg.SPIRVCompiler)
	if err != nil {
		return err
	}
	cache, err := spirv.OpenCache(cfg.ShaderCache)
	if err != nil {
		return err
	}
	defer cache.Close()

	stop := cmn.NewStopCh()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		stop.Close()
	}()

	n, err := cache.Precompile(dir, comp, runtime.NumCPU(), stop.Listen())
	if err != nil {
		return err
	}
	fmt.Printf("precompiled %d shaders with %s into %s\n", n, comp.Name(), cfg.ShaderCache)
	return nil
}
