package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/reqx/packages/core/config"
)

var importCmd = &cobra.Command{
	Use:   "import [curl command]",
	Short: "Convert curl commands into request files",
	Long: `Convert curl commands into YAML request files for "reqx send".

The command is taken from the arguments, or from --file, one command per
line with backslash continuations. Several commands produce a multi
document YAML stream.

Examples:
  reqx import curl -X POST https://api.example.com/items -d '{"a":1}'
  reqx import -f commands.sh -o requests.yaml
  pbpaste | reqx import -f -`,
	RunE: runImport,
}

var (
	importFileFlag   string
	importOutputFlag string
)

func init() {
	importCmd.Flags().StringVarP(&importFileFlag, "file", "f", "", `Read curl commands from a file ("-" for stdin)`)
	importCmd.Flags().StringVarP(&importOutputFlag, "output", "o", "", "Write YAML to this file (default: stdout)")
	// everything after the first argument belongs to curl
	importCmd.Flags().SetInterspersed(false)
}

func runImport(cmd *cobra.Command, args []string) error {
	var commands []string
	switch {
	case importFileFlag != "" && len(args) > 0:
		return &exitError{code: ExitUsageError, err: fmt.Errorf("pass either a curl command or --file, not both")}
	case importFileFlag == "-":
		cmds, err := config.ReadCurlCommands(cmd.InOrStdin())
		if err != nil {
			return err
		}
		commands = cmds
	case importFileFlag != "":
		f, err := os.Open(importFileFlag)
		if err != nil {
			return &exitError{code: ExitUsageError, err: err}
		}
		defer f.Close()
		cmds, err := config.ReadCurlCommands(f)
		if err != nil {
			return err
		}
		commands = cmds
	case len(args) > 0:
		commands = []string{shellJoin(args)}
	default:
		return &exitError{code: ExitUsageError, err: fmt.Errorf("no curl command given")}
	}

	files := make([]*config.RequestFile, 0, len(commands))
	for i, c := range commands {
		rf, err := config.ParseCurl(c)
		if err != nil {
			return &exitError{code: ExitParseError, err: fmt.Errorf("command %d: %w", i+1, err)}
		}
		files = append(files, rf)
	}

	data, err := config.MarshalRequestFiles(files...)
	if err != nil {
		return err
	}

	if importOutputFlag != "" {
		if err := os.WriteFile(importOutputFlag, data, 0o644); err != nil {
			return fmt.Errorf("cannot write output file: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d request(s) to %s\n", len(files), importOutputFlag)
		return nil
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// shellJoin requotes arguments the shell already split so ParseCurl sees
// them as single tokens again.
func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a != "" && !strings.ContainsAny(a, " \t\n'\"\\") {
			quoted[i] = a
			continue
		}
		quoted[i] = "'" + strings.ReplaceAll(a, "'", `'"'"'`) + "'"
	}
	return strings.Join(quoted, " ")
}
