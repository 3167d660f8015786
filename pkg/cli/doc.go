/*
Package cli holds helpers shared by the rulesengine subcommands.

Results are written with a Formatter chosen by the --output flag. Results
that implement Tabular render as aligned columns in text mode and as rows
in CSV mode; JSON output encodes the value itself.

	format, err := cli.ParseFormat(outputFlag)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)

ExitCode maps command errors to exit codes: FailureError (a lint or test
failure) exits 2 and every other error exits 1.
*/
package cli
