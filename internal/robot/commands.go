// Package robot holds the catalog of commands the farm robot firmware
// accepts over the serial console.
package robot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Preset is a named, argument-free robot command
type Preset struct {
	Name        string
	Command     string
	Description string
}

var presets = []Preset{
	{Name: "reload", Command: "20,0", Description: "Reload farm data from the robot"},
	{Name: "mission-data", Command: "20,1", Description: "Download mission data"},
	{Name: "moisture-data", Command: "20,2", Description: "Download moisture data"},
	{Name: "watering-data", Command: "20,3", Description: "Download watering data"},
	{Name: "calibrate", Command: "6", Description: "Calibrate gantry size"},
	{Name: "gantry-json", Command: "11", Description: "Print gantry size as JSON"},
	{Name: "moisture", Command: "2", Description: "Take a moisture reading"},
	{Name: "stop", Command: "STAP", Description: "Stop the robot"},
}

// Presets returns every preset, sorted by name
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a preset by name, case-insensitively
func Lookup(name string) (Preset, bool) {
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Preset{}, false
}

// Resolve turns a preset name into its command; anything else is passed
// through as a literal command line
func Resolve(arg string) string {
	if p, ok := Lookup(arg); ok {
		return p.Command
	}
	return arg
}

// Pump waters manually with ml millilitres
func Pump(ml int) (string, error) {
	if ml <= 0 {
		return "", fmt.Errorf("pump amount must be positive, got %d ml", ml)
	}
	return "12," + strconv.Itoa(ml), nil
}

// RunMission starts the mission with the given id
func RunMission(id int) (string, error) {
	if id <= 0 {
		return "", fmt.Errorf("invalid mission id %d", id)
	}
	return fmt.Sprintf("5,%d,0,0,0", id), nil
}
