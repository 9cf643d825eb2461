package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/humanistchoir/members/apps/shared"
	"github.com/humanistchoir/members/core"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	isTerminalFunc   = isatty.IsTerminal // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf *core.Config
	svcs *shared.Services
	in   *bufio.Reader
	out  io.Writer
}

func newCommandLine(conf *core.Config, svcs *shared.Services, in io.Reader, out io.Writer) *commandLine {
	return &commandLine{conf: conf, svcs: svcs, in: bufio.NewReader(in), out: out}
}

func (cli *commandLine) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Members site administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.migrateCommand(),
		cli.addUserCommand(),
		cli.resetPasswordCommand(),
		cli.inviteCommand(),
		cli.importCommand(),
		cli.eventsCommand(),
		cli.scheduleCommand(),
		cli.exportAttendanceCommand(),
	)
	return root
}

// run executes the command line args (without the program name).
func (cli *commandLine) run(args []string) error {
	root := cli.rootCommand()
	root.SetArgs(args)
	return root.Execute()
}

// readPassword prompts on a terminal, otherwise reads one line of input.
func (cli *commandLine) readPassword(prompt string) (string, error) {
	if !isTerminalFunc(os.Stdin.Fd()) {
		line, err := cli.in.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// promptPassword asks twice and insists on a match.
func (cli *commandLine) promptPassword() (string, error) {
	pwd, err := cli.readPassword("Enter password: ")
	if err != nil {
		return "", err
	}
	if pwd == "" {
		return "", errHelp
	}
	confirm, err := cli.readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if pwd != confirm {
		return "", errPasswordMismatch
	}
	return pwd, nil
}

var errPasswordMismatch = errors.New("passwords do not match")
