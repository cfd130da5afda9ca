// Command gridtest exercises grid controllers without the rest of the app.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"snap-blaster/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	defer midi.CloseDriver()

	switch os.Args[1] {
	case "list":
		listPorts()
	case "detect":
		detect()
	case "leds":
		testLEDs(portArg())
	case "events":
		printEvents(portArg())
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("Grid controller test")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list           - List all MIDI ports")
	fmt.Println("  detect         - Find supported grid controllers")
	fmt.Println("  leds [port]    - Light the diagonal in each scene color")
	fmt.Println("  events [port]  - Print pad and button presses")
	fmt.Println("  poll           - Watch controllers connect and disconnect")
}

func portArg() string {
	if len(os.Args) > 2 {
		return os.Args[2]
	}
	return "launchpad"
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins, outs []midi.Descriptor
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: midi.ListInputs(), outs: midi.ListOutputs()}
	}()

	select {
	case r := <-ch:
		for _, p := range r.ins {
			fmt.Printf("  %s: %s\n", p.ID, p.Name)
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for _, p := range r.outs {
			fmt.Printf("  %s: %s\n", p.ID, p.Name)
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! The MIDI service is hung.")
		fmt.Println("macOS fix: sudo killall coreaudiod midiserver")
	}
}

func detect() {
	found := 0
	for _, p := range midi.ListInputs() {
		m, err := midi.DetectModel(p.Name)
		if err != nil {
			continue
		}
		fmt.Printf("Found %s on %q\n", m, p.Name)
		found++
	}
	if found == 0 {
		fmt.Println("No supported grid controller found")
	}
}

func open(port string) (*midi.Launchpad, bool) {
	for _, p := range midi.ListInputs() {
		m, err := midi.DetectModel(p.Name)
		if err != nil {
			continue
		}
		if port != "launchpad" && p.Name != port {
			continue
		}
		lp, err := midi.OpenLaunchpad(p.Name, m)
		if err != nil {
			fmt.Printf("Error opening %s: %v\n", p.Name, err)
			return nil, false
		}
		fmt.Printf("Using %s (%s)\n", p.Name, m)
		return lp, true
	}
	fmt.Println("No Launchpad found")
	return nil, false
}

func testLEDs(port string) {
	lp, ok := open(port)
	if !ok {
		return
	}
	defer lp.Close()

	colors := [][3]uint8{
		midi.ColorRed, midi.ColorOrange, midi.ColorYellow, midi.ColorGreen,
		midi.ColorCyan, midi.ColorBlue, midi.ColorPurple, midi.ColorWhite,
	}

	fmt.Println("Lighting up diagonal...")
	for i := 0; i < 8; i++ {
		lp.SetPadColor(uint8(i*8+i), colors[i])
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println("Press Enter to clear...")
	fmt.Scanln()
	fmt.Println("Done!")
}

func printEvents(port string) {
	lp, ok := open(port)
	if !ok {
		return
	}
	defer lp.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Press pads and buttons. Ctrl+C to exit.")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-lp.Events():
			if !ok {
				return
			}
			fmt.Printf("%-16s id=%-3d vel=%d\n", ev.Kind, ev.ID, ev.Velocity)
			if ev.Kind == midi.PadPressed {
				lp.SetPadColor(ev.ID, midi.ColorWhite)
			} else if ev.Kind == midi.PadReleased {
				lp.SetPadColor(ev.ID, midi.ColorOff)
			}
		}
	}
}

func pollDevices() {
	fmt.Println("Watching for grid controllers...")
	fmt.Println("Connect/disconnect a Launchpad to test. Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dm := midi.NewDeviceManager()
	go dm.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-dm.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case midi.DeviceConnected:
				fmt.Printf("[%s] connected: %s (%s)\n", time.Now().Format("15:04:05"), ev.ID, ev.Controller.Model())
			case midi.DeviceDisconnected:
				fmt.Printf("[%s] disconnected: %s\n", time.Now().Format("15:04:05"), ev.ID)
			}
		}
	}
}
