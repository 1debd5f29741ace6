// Copyright 2020 The go-subvm Authors
// This file is part of go-subvm.
//
// go-subvm is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-subvm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-subvm. If not, see <http://www.gnu.org/licenses/>.

// subvm is a command line utility to validate, run and disassemble programs
// in the subroutine-extended bytecode format.
package main

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	log "github.com/inconshreveable/log15"
	"github.com/olekukonko/tablewriter"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/ethvm/go-subvm/core/asm"
	"github.com/ethvm/go-subvm/core/vm"
)

var (
	app = cli.NewApp()

	CodeFlag = cli.StringFlag{
		Name:  "code",
		Usage: "bytecode to operate on, as a hex string",
	}
	CodeFileFlag = cli.StringFlag{
		Name:  "codefile",
		Usage: "file containing bytecode as a hex string ('-' for stdin)",
	}
	JumpTableFlag = cli.StringFlag{
		Name:  "jumptable",
		Usage: "file containing hex encoded jumpdest table records",
	}
	GasFlag = cli.Uint64Flag{
		Name:  "gas",
		Usage: "gas budget for the run",
		Value: 10000000,
	}
	TraceFlag = cli.BoolFlag{
		Name:  "trace",
		Usage: "log every executed instruction",
	}
	SkipValidationFlag = cli.BoolFlag{
		Name:  "novalidate",
		Usage: "run without validating first",
	}
	VerbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "log verbosity (0-5)",
		Value: 3,
	}
)

func init() {
	app.Name = "subvm"
	app.Usage = "validator and runner for subroutine-extended bytecode"
	app.Flags = []cli.Flag{VerbosityFlag}
	app.Commands = []cli.Command{
		{
			Name:   "validate",
			Usage:  "statically validate a program against its jumpdest table",
			Flags:  []cli.Flag{CodeFlag, CodeFileFlag, JumpTableFlag},
			Action: validateCmd,
		},
		{
			Name:   "run",
			Usage:  "execute a program",
			Flags:  []cli.Flag{CodeFlag, CodeFileFlag, JumpTableFlag, GasFlag, TraceFlag, SkipValidationFlag},
			Action: runCmd,
		},
		{
			Name:   "disasm",
			Usage:  "disassemble a program",
			Flags:  []cli.Flag{CodeFlag, CodeFileFlag},
			Action: disasmCmd,
		},
	}
	app.Before = func(ctx *cli.Context) error {
		lvl := log.Lvl(ctx.GlobalInt(VerbosityFlag.Name))
		log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadCode fetches the bytecode from --code or --codefile.
func loadCode(ctx *cli.Context) ([]byte, error) {
	var hexcode string
	switch {
	case ctx.String(CodeFlag.Name) != "":
		hexcode = ctx.String(CodeFlag.Name)
	case ctx.String(CodeFileFlag.Name) == "-":
		input, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		hexcode = string(input)
	case ctx.String(CodeFileFlag.Name) != "":
		input, err := ioutil.ReadFile(ctx.String(CodeFileFlag.Name))
		if err != nil {
			return nil, err
		}
		hexcode = string(input)
	default:
		return nil, fmt.Errorf("either --%s or --%s is required", CodeFlag.Name, CodeFileFlag.Name)
	}
	hexcode = strings.TrimSpace(hexcode)
	hexcode = strings.TrimPrefix(hexcode, "0x")
	return hex.DecodeString(hexcode)
}

// loadJumpDestTable parses the optional --jumptable file.
func loadJumpDestTable(ctx *cli.Context) (vm.JumpDestTable, error) {
	path := ctx.String(JumpTableFlag.Name)
	if path == "" {
		return nil, nil
	}
	input, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(input)))
	if err != nil {
		return nil, err
	}
	return vm.ParseJumpDestTable(raw)
}

func validateCmd(ctx *cli.Context) error {
	code, err := loadCode(ctx)
	if err != nil {
		return err
	}
	table, err := loadJumpDestTable(ctx)
	if err != nil {
		return err
	}
	if err := vm.Validate(code, table); err != nil {
		log.Error("Validation failed", "err", err)
		return cli.NewExitError("", 1)
	}
	log.Info("Validation passed", "code", len(code), "edges", len(table))
	return nil
}

func runCmd(ctx *cli.Context) error {
	code, err := loadCode(ctx)
	if err != nil {
		return err
	}
	table, err := loadJumpDestTable(ctx)
	if err != nil {
		return err
	}
	if !ctx.Bool(SkipValidationFlag.Name) {
		if err := vm.Validate(code, table); err != nil {
			log.Error("Refusing to run invalid program", "err", err)
			return cli.NewExitError("", 1)
		}
	}
	cfg := vm.Config{}
	if ctx.Bool(TraceFlag.Name) {
		cfg.Debug = true
		cfg.Tracer = &logTracer{}
	}
	contract := vm.NewContract(code, ctx.Uint64(GasFlag.Name))
	_, err = vm.NewInterpreter(cfg).Run(contract)
	if err != nil {
		log.Error("Execution faulted", "err", err, "gasLeft", contract.Gas)
		return cli.NewExitError("", 1)
	}
	log.Info("Execution finished", "gasLeft", contract.Gas)
	return nil
}

func disasmCmd(ctx *cli.Context) error {
	code, err := loadCode(ctx)
	if err != nil {
		return err
	}
	instrs, err := asm.Disassemble(code)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"PC", "Instruction"})
	for _, ins := range instrs {
		parts := strings.SplitN(strings.TrimSpace(ins), ": ", 2)
		table.Append(parts)
	}
	table.Render()
	return nil
}

// logTracer prints every executed instruction through the logger.
type logTracer struct{}

func (t *logTracer) CaptureState(pc uint64, op vm.OpCode, gas, cost uint64, stack *vm.Stack, rstack *vm.ReturnStack) {
	log.Info("step", "pc", pc, "op", op.String(), "gas", gas, "cost", cost,
		"stack", stack.Data(), "rstack", rstack.Data())
}

func (t *logTracer) CaptureFault(pc uint64, op vm.OpCode, gas uint64, err error) {
	log.Error("fault", "pc", pc, "op", op.String(), "gas", gas, "err", err)
}
