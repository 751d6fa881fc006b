package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	lib "github.com/awused/spanning-background/lib"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	lib.AttachParentConsole()
	defer lib.Cleanup()

	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	app := cli.NewApp()
	app.Name = "spanning-background"
	app.Usage = "Combine images into one background spanning every display"
	app.ArgsUsage = "IMAGE_FILE_OR_DIR..."
	app.Flags = spanFlags()
	app.Action = spanAction
	app.Commands = []*cli.Command{
		displaysCommand(),
	}

	err := app.RunContext(ctx, os.Args)
	stop()
	checkErr(err)
}

// Loads the config file and layers any flags that were set on top of it.
func loadConfig(c *cli.Context) *lib.Config {
	conf, err := lib.LoadConfig(c.String(configFlag))
	checkErr(err)

	err = applyFlags(c, conf)
	checkErr(err)

	if conf.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	if conf.LogFile != "" {
		f, err := os.OpenFile(conf.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatalf("Error opening log file: %v", err)
		}
		// Left open until exit
		log.SetOutput(f)
	}
	return conf
}

func checkErr(err error) {
	if err != nil {
		log.Errorln(err)
		if cerr := lib.Cleanup(); cerr != nil {
			log.Errorln(cerr)
		}
		os.Exit(1)
	}
}
