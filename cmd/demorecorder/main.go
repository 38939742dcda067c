package main

import (
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/demorecorder/pkg/config"
)

type Options struct {
	Config string `short:"c" long:"config" description:"Session configuration file (default: demorecorder.yaml)"`
	Env    string `long:"env" default:".env" description:"Environment file loaded before the configuration"`

	Setup  SetupCommand  `command:"setup" description:"Scan for arms and calibrate them"`
	Record RecordCommand `command:"record" alias:"rec" description:"Record demonstrations (teleoperation, keyboard and web triggers)"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "demorecorder - record robot demonstrations with SO-101 arms"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadConfig reads .env and the session configuration named on the
// command line. A missing configuration file yields the defaults.
func loadConfig() (config.Config, error) {
	if err := config.LoadEnv(opts.Env); err != nil {
		return config.Config{}, err
	}
	return config.LoadOrDefault(configPath())
}

func configPath() string {
	if opts.Config == "" {
		return config.DefaultFile
	}
	return opts.Config
}
