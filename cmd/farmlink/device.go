package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/farmlink/internal/robot"
	"github.com/muurk/farmlink/internal/serial"
	"github.com/muurk/farmlink/internal/stream"
)

// Device command flags
var (
	devicePort  string
	portsAll    bool
	sendList    bool
	sendPump    int
	sendMission int
	sendWait    time.Duration
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and mark the ones that look like the robot",
	RunE:  runPorts,
}

var sendCmd = &cobra.Command{
	Use:   "send [command|preset]",
	Short: "Send one command to the robot",
	Long: `Send a single command line to the robot and exit.

The argument is either a preset name (see --list) or a literal command line,
which is sent as-is with a trailing CRLF. --pump and --mission build the
manual watering and run-mission commands.`,
	Example: `  farmlink send reload
  farmlink send 20,2
  farmlink send --pump 150
  farmlink send --mission 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSend,
}

var controlCmd = &cobra.Command{
	Use:       "control <" + strings.Join(serial.ControlNames, "|") + ">",
	Short:     "Send a console control sequence",
	ValidArgs: serial.ControlNames,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:      runControl,
}

func init() {
	portsCmd.Flags().BoolVar(&portsAll, "all", false, "Include ports that are not USB")

	for _, c := range []*cobra.Command{sendCmd, controlCmd} {
		c.Flags().StringVar(&devicePort, "port", "", "Serial port (default: config, then USB auto-detect)")
	}
	sendCmd.Flags().BoolVar(&sendList, "list", false, "List the command presets")
	sendCmd.Flags().IntVar(&sendPump, "pump", 0, "Water manually with this many millilitres")
	sendCmd.Flags().IntVar(&sendMission, "mission", 0, "Run the mission with this id")
	sendCmd.Flags().DurationVar(&sendWait, "wait", 0, "Print the robot's output for this long after sending")

	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(controlCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPorts(cfg.Serial.USBFilters)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tUSB ID\tPRODUCT\tSERIAL\tROBOT")
	shown := 0
	for _, p := range ports {
		if !p.IsUSB && !portsAll {
			continue
		}
		id := "-"
		if p.IsUSB {
			id = strings.ToUpper(p.VID + ":" + p.PID)
		}
		match := ""
		if p.Match {
			match = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.Name, id, dash(p.Product), dash(p.SerialNumber), match)
		shown++
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if shown == 0 {
		fmt.Println("\nNo serial ports found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Check the USB cable carries data, not only power")
		fmt.Println("  - On Linux, make sure your user is in the dialout group")
		fmt.Println("  - Use --all to include non-USB ports")
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// sendCommandFor works out the command line from the arguments and flags
func sendCommandFor(args []string) (string, error) {
	set := 0
	if len(args) == 1 {
		set++
	}
	if sendPump != 0 {
		set++
	}
	if sendMission != 0 {
		set++
	}
	if set != 1 {
		return "", fmt.Errorf("give exactly one of a command, --pump or --mission")
	}

	switch {
	case sendPump != 0:
		return robot.Pump(sendPump)
	case sendMission != 0:
		return robot.RunMission(sendMission)
	}
	command := robot.Resolve(strings.TrimSpace(args[0]))
	if command == "" {
		return "", fmt.Errorf("empty command")
	}
	return command, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	if sendList {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PRESET\tCOMMAND\tDESCRIPTION")
		for _, p := range robot.Presets() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Command, p.Description)
		}
		return w.Flush()
	}

	command, err := sendCommandFor(args)
	if err != nil {
		return err
	}

	port, err := openPort(cfg, devicePort)
	if err != nil {
		return err
	}
	defer port.Close()

	if err := port.Send(command); err != nil {
		return err
	}
	fmt.Printf("Sent %q to %s\n", command, port.Path())

	if sendWait > 0 {
		return echoFor(cmd, port, sendWait)
	}
	return nil
}

func runControl(cmd *cobra.Command, args []string) error {
	port, err := openPort(cfg, devicePort)
	if err != nil {
		return err
	}
	defer port.Close()

	if err := port.Control(args[0]); err != nil {
		return err
	}
	fmt.Printf("Sent %s to %s\n", args[0], port.Path())
	return nil
}

// echoFor prints what the robot sends until d has passed
func echoFor(cmd *cobra.Command, port *serial.Port, d time.Duration) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), d)
	defer cancel()

	disp := stream.NewDispatcher(consoleHandler(os.Stdout, true), cfg.StreamOptions())
	err := stream.Pump(ctx, port, disp)
	disp.Flush()
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
