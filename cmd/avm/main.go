// Command avm is the AVM driver: it reads a program (binary image or, with
// -asm, assembly source), optionally disassembles it, evaluates it, and
// reports the result via the process exit code. The
// subcommands and flags are a superset of that bare behavior, not a
// replacement for it: `avm` with no arguments reads a binary image from
// stdin, runs it, and exits with the low byte of the result.
package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"avm/vm"
)

func main() {
	app := &cli.App{
		Name:  "avm",
		Usage: "assemble and run AVM bytecode programs",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "asm", Usage: "treat input as assembly source instead of a binary image"},
			&cli.BoolFlag{Name: "disasm", Usage: "print a disassembly of the initial image before evaluating"},
			&cli.BoolFlag{Name: "debug", Usage: "step through execution interactively"},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "read the program from this file instead of standard input"},
		},
		Action: runCommand,
		Commands: []*cli.Command{
			{
				Name:  "disasm",
				Usage: "print a disassembly listing without evaluating",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "asm", Usage: "treat input as assembly source instead of a binary image"},
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "read the program from this file instead of standard input"},
				},
				Action: disasmCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "err: %s\n", err)
		os.Exit(1)
	}
}

func readInput(c *cli.Context) ([]byte, error) {
	path := c.String("input")
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// decodeBinaryImage unpacks a raw little-endian byte stream into words.
// Trailing bytes that don't make up a full word are discarded, not
// zero-extended.
func decodeBinaryImage(data []byte) []vm.Word {
	oplen := len(data) / 8
	words := make([]vm.Word, oplen)
	for i := 0; i < oplen; i++ {
		words[i] = vm.Word(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
	}
	return words
}

func loadImage(c *cli.Context) ([]vm.Word, error) {
	data, err := readInput(c)
	if err != nil {
		return nil, err
	}
	if c.Bool("asm") {
		return vm.Assemble(data)
	}
	return decodeBinaryImage(data), nil
}

func runCommand(c *cli.Context) error {
	image, err := loadImage(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "err: %s\n", err)
		os.Exit(1)
	}

	ctx, err := vm.NewContext(image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "err: %s\n", err)
		os.Exit(1)
	}
	defer ctx.Release()

	if c.Bool("disasm") {
		listing, err := vm.StringifyRange(ctx, 0, vm.Address(len(image)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "err: %s\n", err)
			os.Exit(1)
		}
		fmt.Println(listing)
	}

	var result vm.Value
	if c.Bool("debug") {
		result, err = vm.RunDebug(ctx, os.Stdin, os.Stdout)
	} else {
		result, err = vm.Evaluate(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "err: %s\n", err)
		os.Exit(1)
	}

	os.Exit(int(byte(result & 0xFF)))
	return nil
}

func disasmCommand(c *cli.Context) error {
	image, err := loadImage(c)
	if err != nil {
		return err
	}
	listing, err := vm.StringifyRange(vm.NewImageReader(image), 0, vm.Address(len(image)))
	if err != nil {
		return err
	}
	fmt.Println(listing)
	return nil
}
