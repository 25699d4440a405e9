package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/LdDl/pix2pix-go/config"
	"github.com/LdDl/pix2pix-go/configs"
	"github.com/LdDl/pix2pix-go/logging"
)

func main() {
	var overrides config.Overrides
	cfgName := flag.String("config", configs.Edges2Shoes, "config file (YAML) or name of embedded preset")
	list := flag.Bool("list", false, "list embedded presets and exit")
	flag.Var(&overrides, "cfg-options", "override config entries, e.g. --cfg-options 'train_cfg.max_iters=100'")
	flag.Parse()

	if *list {
		names, err := configs.Names()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	logging.Configure(logging.Config{Level: "warn"})
	cfg, err := configs.Resolve(*cfgName, overrides...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Can't load config '%s': %v\n", *cfgName, err)
		os.Exit(1)
	}
	if err := cfg.Dump(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
