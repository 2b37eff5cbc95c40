package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/alecthomas/kong"

	"github.com/stmtools/flashgo/flash"
	"github.com/stmtools/flashgo/probe"
	"github.com/stmtools/flashgo/script"
	"github.com/stmtools/flashgo/sim"
)

const (
	AppVersion = "0.3.0"
)

// Quick way to fail on error, since most commands are "doing" something on
// behalf of something else.
func fatalIfErr(subject string, doing string, err error) {
	if err != nil {
		log.Fatalf("%s - Couldn't %s: %s", subject, doing, err)
	}
}

// The target argument is either a flash image file (simulated controller) or
// a serial port with a monitor on the other end. A file that exists wins.
type target struct {
	dev  flash.Device
	irq  flash.Interrupts
	name string

	ctl *sim.Controller // set for image targets
	prb *probe.Probe    // set for port targets

	closer func()
}

func openTarget(where string, geo flash.Geometry, baud int) *target {
	fi, err := os.Stat(where)
	if err == nil && fi.Mode().IsRegular() {
		ctl, err := sim.LoadImage(where, geo)
		fatalIfErr(where, "load flash image", err)
		log.Printf("%s is a file, using simulated controller (%d bytes flash)\n", where, geo.Size())
		return &target{dev: ctl, irq: ctl, name: where, ctl: ctl}
	}
	p, closer, err := probe.Open(where, baud)
	fatalIfErr(where, "open monitor port", err)
	return &target{dev: p, irq: p, name: where, prb: p, closer: func() { closer.Close() }}
}

// finish locks the handle, flushes image targets back to disk and surfaces
// any latched probe transport error.
func (t *target) finish(u *flash.Unlocked, path string) {
	if u != nil {
		u.Lock()
	}
	if t.prb != nil {
		fatalIfErr(t.name, "talk to monitor", t.prb.Err())
	}
	if t.ctl != nil {
		if len(t.ctl.Violations) > 0 {
			log.Fatalf("%s - controller protocol violations: %v", t.name, t.ctl.Violations)
		}
		fatalIfErr(path, "save flash image", t.ctl.SaveImage(path))
	}
	if t.closer != nil {
		t.closer()
	}
}

func (t *target) unlock(geo flash.Geometry) *flash.Unlocked {
	locked := flash.NewLocked(t.dev, t.irq, flash.WithGeometry(geo))
	u, err := locked.Unlock()
	fatalIfErr(t.name, "unlock flash", err)
	return u
}

func chosenGeometry(profilePath string) flash.Geometry {
	if profilePath == "" {
		return flash.DefaultGeometry
	}
	p, err := flash.LoadProfile(profilePath)
	fatalIfErr(profilePath, "load device profile", err)
	geo, err := p.Geometry()
	fatalIfErr(profilePath, "resolve geometry", err)
	log.Printf("Using profile %s: base %#x, %d pages of %d bytes\n",
		p.Name, geo.Base, geo.NumPages, geo.PageSize)
	return geo
}

func parseNum(s string) uint32 {
	v, err := strconv.ParseUint(s, 0, 32)
	fatalIfErr(s, "parse number", err)
	return uint32(v)
}

// **********************************
// *        IMAGE COMMANDS          *
// **********************************

type MkimageCmd struct {
	Image string `arg:"" help:"Path of the flash image to create"`
}

func (c *MkimageCmd) Run() error {
	geo := chosenGeometry(cli.Profile)
	err := sim.NewImageFile(c.Image, geo)
	fatalIfErr(c.Image, "create image", err)
	log.Printf("Created erased %d byte flash image %s\n", geo.Size(), c.Image)
	result := make(map[string]interface{})
	result["Filename"] = c.Image
	result["Size"] = geo.Size()
	result["Pages"] = geo.NumPages
	PrintJson(result)
	return nil
}

type StatusCmd struct {
	Target string `arg:"" help:"Flash image file or monitor serial port"`
}

func (c *StatusCmd) Run() error {
	geo := chosenGeometry(cli.Profile)
	t := openTarget(c.Target, geo, cli.Baud)
	u := t.unlock(geo)
	err := u.Status()
	result := make(map[string]interface{})
	result["Target"] = c.Target
	result["Base"] = fmt.Sprintf("%#x", geo.Base)
	result["PageSize"] = geo.PageSize
	result["Pages"] = geo.NumPages
	if err != nil {
		result["Status"] = err.Error()
	} else {
		result["Status"] = "ok"
	}
	t.finish(u, c.Target)
	PrintJson(result)
	return nil
}

// **********************************
// *     ERASE/WRITE/READ           *
// **********************************

type EraseCmd struct {
	Target string `arg:"" help:"Flash image file or monitor serial port"`
	Page   int    `arg:"" optional:"" default:"-1" help:"Page index to erase"`
	All    bool   `help:"Erase every page"`
}

func (c *EraseCmd) Run() error {
	geo := chosenGeometry(cli.Profile)
	if !c.All && c.Page < 0 {
		log.Fatalf("Must give a page index or --all!")
	}
	t := openTarget(c.Target, geo, cli.Baud)
	u := t.unlock(geo)
	erased := 0
	if c.All {
		for p := flash.FlashPage(0); uint32(p) < geo.NumPages; p++ {
			fatalIfErr(c.Target, fmt.Sprintf("erase page %d", p), u.ErasePage(p))
			erased++
		}
	} else {
		fatalIfErr(c.Target, fmt.Sprintf("erase page %d", c.Page), u.ErasePage(flash.FlashPage(c.Page)))
		erased = 1
	}
	t.finish(u, c.Target)
	log.Printf("Erased %d page(s) on %s\n", erased, c.Target)
	return nil
}

type WriteCmd struct {
	Target  string `arg:"" help:"Flash image file or monitor serial port"`
	Address string `arg:"" help:"Byte address to write at (any alignment)"`
	Infile  string `type:"existingfile" short:"i" required:"" help:"File with the bytes to program"`
}

func (c *WriteCmd) Run() error {
	geo := chosenGeometry(cli.Profile)
	data, err := os.ReadFile(c.Infile)
	fatalIfErr(c.Infile, "read input file", err)
	addr := parseNum(c.Address)
	if !geo.Contains(addr, uint32(len(data))) {
		log.Fatalf("Write of %d bytes at %#x falls outside flash!", len(data), addr)
	}
	t := openTarget(c.Target, geo, cli.Baud)
	u := t.unlock(geo)
	fatalIfErr(c.Target, "write flash", u.Write(addr, data))
	t.finish(u, c.Target)
	log.Printf("Wrote %d bytes at %#x on %s\n", len(data), addr, c.Target)
	result := make(map[string]interface{})
	result["Filename"] = c.Infile
	result["Address"] = fmt.Sprintf("%#x", addr)
	result["Length"] = len(data)
	PrintJson(result)
	return nil
}

type ReadCmd struct {
	Target  string `arg:"" help:"Flash image file or monitor serial port"`
	Address string `arg:"" help:"Byte address to read from"`
	Length  string `arg:"" help:"Number of bytes to read"`
	Outfile string `type:"path" short:"o" help:"Write bytes here instead of hexdumping"`
}

func (c *ReadCmd) Run() error {
	geo := chosenGeometry(cli.Profile)
	addr := parseNum(c.Address)
	length := parseNum(c.Length)
	if !geo.Contains(addr, length) {
		log.Fatalf("Read of %d bytes at %#x falls outside flash!", length, addr)
	}
	t := openTarget(c.Target, geo, cli.Baud)
	u := t.unlock(geo)
	buf := make([]byte, length)
	u.Read(addr, buf)
	t.finish(u, c.Target)
	if c.Outfile != "" {
		fatalIfErr(c.Outfile, "write output file", os.WriteFile(c.Outfile, buf, 0644))
		log.Printf("Read %d bytes at %#x into %s\n", length, addr, c.Outfile)
	} else {
		HexDump(os.Stdout, addr, buf)
	}
	return nil
}

// **********************************
// *        HEX COMMANDS            *
// **********************************

type WriteHexCmd struct {
	Target  string `arg:"" help:"Flash image file or monitor serial port"`
	Infile  string `type:"existingfile" short:"i" required:"" help:"Intel HEX firmware file"`
	Noerase bool   `help:"Do not erase touched pages first"`
}

func (c *WriteHexCmd) Run() error {
	geo := chosenGeometry(cli.Profile)
	f, err := os.Open(c.Infile)
	fatalIfErr(c.Infile, "open hex file", err)
	defer f.Close()
	segments, err := flash.ParseHex(f)
	fatalIfErr(c.Infile, "parse hex file", err)

	t := openTarget(c.Target, geo, cli.Baud)
	u := t.unlock(geo)

	if !c.Noerase {
		erased := make(map[flash.FlashPage]bool)
		for _, s := range segments {
			for _, p := range s.Pages(geo) {
				if !erased[p] {
					fatalIfErr(c.Target, fmt.Sprintf("erase page %d", p), u.ErasePage(p))
					erased[p] = true
				}
			}
		}
		log.Printf("Erased %d page(s) covered by %s\n", len(erased), c.Infile)
	}

	written := 0
	for _, s := range segments {
		if !geo.Contains(s.Address, uint32(len(s.Data))) {
			log.Fatalf("Segment of %d bytes at %#x falls outside flash!", len(s.Data), s.Address)
		}
		fatalIfErr(c.Target, fmt.Sprintf("write segment at %#x", s.Address), u.Write(s.Address, s.Data))
		written += len(s.Data)
	}
	t.finish(u, c.Target)
	log.Printf("Wrote %d segments (%d bytes) to %s\n", len(segments), written, c.Target)
	result := make(map[string]interface{})
	result["Filename"] = c.Infile
	result["Segments"] = len(segments)
	result["BytesWritten"] = written
	PrintJson(result)
	return nil
}

type ReadHexCmd struct {
	Target  string `arg:"" help:"Flash image file or monitor serial port"`
	Outfile string `type:"path" short:"o" help:"Intel HEX output (default stdout)"`
}

func (c *ReadHexCmd) Run() error {
	geo := chosenGeometry(cli.Profile)
	t := openTarget(c.Target, geo, cli.Baud)
	u := t.unlock(geo)
	buf := make([]byte, geo.Size())
	u.Read(geo.Base, buf)
	t.finish(u, c.Target)
	out := os.Stdout
	if c.Outfile != "" {
		f := forceCreate(c.Outfile)
		defer f.Close()
		out = f
	}
	err := flash.DumpHex(out, []flash.Segment{{Address: geo.Base, Data: buf}})
	fatalIfErr(c.Target, "dump hex", err)
	if c.Outfile != "" {
		log.Printf("Dumped %d bytes of flash to %s\n", len(buf), c.Outfile)
	}
	return nil
}

// **********************************
// *       SCRIPT COMMAND           *
// **********************************

type ScriptCmd struct {
	Target     string   `arg:"" help:"Flash image file or monitor serial port"`
	Scriptfile string   `arg:"" type:"existingfile" help:"Lua script to run"`
	Args       []string `arg:"" optional:"" help:"Arguments passed to the script"`
}

func (c *ScriptCmd) Run() error {
	geo := chosenGeometry(cli.Profile)
	code, err := os.ReadFile(c.Scriptfile)
	fatalIfErr(c.Scriptfile, "read script", err)
	t := openTarget(c.Target, geo, cli.Baud)
	u := t.unlock(geo)
	logs, err := script.Run(string(code), c.Args, u)
	fmt.Print(logs)
	fatalIfErr(c.Scriptfile, "run script", err)
	t.finish(u, c.Target)
	return nil
}

// **********************************
// *    ALL TOGETHER COMMANDS       *
// **********************************

var cli struct {
	Mkimage  MkimageCmd       `cmd:"" help:"Create an erased flash image file"`
	Status   StatusCmd        `cmd:"" help:"Report controller status and geometry"`
	Erase    EraseCmd         `cmd:"" help:"Erase one page (or everything with --all)"`
	Write    WriteCmd         `cmd:"" help:"Program raw bytes at any address, aligned or not"`
	Read     ReadCmd          `cmd:"" help:"Read bytes back, hexdump or save to a file"`
	Writehex WriteHexCmd      `cmd:"" help:"Program an Intel HEX firmware file" name:"writehex"`
	Readhex  ReadHexCmd       `cmd:"" help:"Dump flash contents as Intel HEX" name:"readhex"`
	Script   ScriptCmd        `cmd:"" help:"Run a lua script of flash operations"`
	Version  kong.VersionFlag `help:"Show version information"`
	Profile  string           `type:"existingfile" help:"Device profile toml selecting the flash geometry"`
	Baud     int              `default:"115200" help:"Baud rate when the target is a serial port"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("flashgo"),
		kong.ShortUsageOnError(),
		kong.Description("Tools for erasing, programming and reading MCU flash, against image files or a serial debug monitor"),
		kong.Vars{
			"version": AppVersion,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
