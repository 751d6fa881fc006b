package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func displaysCommand() *cli.Command {
	return &cli.Command{
		Name:   "displays",
		Usage:  "Print the displays that would be covered and the combined image size",
		Action: displaysAction,
	}
}

func displaysAction(c *cli.Context) error {
	conf := loadConfig(c)

	err := conf.ValidateDisplays()
	checkErr(err)

	l, err := conf.LayoutSource().Layout()
	checkErr(err)

	b := l.Bounds()
	fmt.Printf("Image size: %dx%d\n", b.Dx(), b.Dy())
	for i, d := range l.Displays {
		fmt.Printf("Display %d: %s\n", i, d)
	}
	if l.NeedsWrap() {
		fmt.Printf("Wrapped around the primary display at %d,%d\n", l.Origin.X, l.Origin.Y)
	}
	return nil
}
