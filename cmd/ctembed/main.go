// Command ctembed converts one or more template files into a C source
// fragment declaring each as a "const char NAME[] = \"...\";" string,
// dogfeeding the engine's own section and modifier pipeline to build its
// output.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ctemplate-go/ctemplate"
	"github.com/ctemplate-go/ctemplate/dict"
)

// embedTemplate is ctembed's own output template: a Template section,
// repeated once per input file, separated by a blank line between entries.
const embedTemplate = "/* Embedded Template Strings */\n" +
	"@#Template@" +
	"const char @TemplateName@[] =\n    \"@TemplateBody:cstring_escape:breakup_lines@\";" +
	"@#Template_separator@@BI_NEWLINE@@BI_NEWLINE@@/Template_separator@" +
	"@/Template@" +
	"@BI_NEWLINE@" +
	"/* End Embedded Template Strings */" +
	"@BI_NEWLINE@"

// breakupLines wraps cstring_escape's output so no generated line exceeds
// roughly 80 columns, splitting "...\"\n    \"..." at a column boundary
// that never falls inside a backslash escape.
func breakupLines(_, _, _, value string, out io.Writer) {
	col := 0
	for i := 0; i < len(value); i++ {
		out.Write([]byte{value[i]})
		col++
		if col > 70 && i+1 < len(value) && value[i] != '\\' {
			col = 0
			io.WriteString(out, "\"\n    \"")
		}
	}
}

// splitNameArg splits a "PATH[=NAME]" operand into the file path to read
// and the identifier to declare, sanitizing '.', '\\', and '/' to '_' in
// whichever string supplies the name.
func splitNameArg(arg string) (path, name string) {
	parts := strings.SplitN(arg, "=", 2)
	path = parts[0]
	raw := path
	if len(parts) == 2 {
		raw = parts[1]
	}
	var sb strings.Builder
	for _, r := range raw {
		switch r {
		case '.', '\\', '/':
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
	}
	return path, sb.String()
}

func runEmbed(cmd *cobra.Command, args []string) error {
	tmpl, err := ctemplate.LoadTemplateText(embedTemplate,
		ctemplate.WithDelimiters("@", "@"),
		ctemplate.WithModifier("breakup_lines", breakupLines),
	)
	if err != nil {
		return err
	}

	root := ctemplate.NewDictionary()
	for _, arg := range args {
		path, name := splitNameArg(arg)
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("could not open %q for reading: %w", path, err)
		}
		section := dict.New()
		if err := section.SetString("TemplateName", name); err != nil {
			return err
		}
		if err := section.SetString("TemplateBody", string(content)); err != nil {
			return err
		}
		if err := root.AddDictionary("Template", section); err != nil {
			return err
		}
	}

	out, err := tmpl.ExpandToString(root)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

var rootCmd = &cobra.Command{
	Use:           "ctembed file1[=name1] file2[=name2] ... fileN[=nameN]",
	Short:         "Convert template files into embedded C string constants",
	SilenceUsage:  true,
	SilenceErrors: true,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("USAGE: ctembed file1[=name1] file2[=name2] ... fileN[=nameN] [>out_file]")
		}
		return nil
	},
	RunE: runEmbed,
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("ctembed: ")
	if err := rootCmd.Execute(); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}
