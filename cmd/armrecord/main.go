package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type Options struct {
	Config  string `short:"c" long:"config" env:"ARMRECORD_CONFIG" default:"armrecord.json" description:"Configuration file"`
	Verbose bool   `short:"v" long:"verbose" env:"ARMRECORD_VERBOSE" description:"Debug logging"`

	Setup   SetupCommand   `command:"setup" description:"Find the controller and follower arms and calibrate them"`
	Record  RecordCommand  `command:"record" alias:"rec" description:"Record teleoperated trajectories"`
	Run     RunCommand     `command:"run" description:"Drive the arm with a trained policy"`
	Inspect InspectCommand `command:"inspect" description:"Summarise recorded shards"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	// Optional; flags with env tags pick up values from .env.
	_ = godotenv.Load()

	parser.LongDescription = "armrecord - record and replay trajectories of a two-joint robot arm"

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
