package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lexlab/tracer/internal/curriculum"
)

func init() {
	root := &cobra.Command{
		Use:   "curriculum",
		Short: "Validate and convert curriculum files",
	}

	validate := &cobra.Command{
		Use:   "validate <curriculum.yaml>",
		Short: "Validate a YAML curriculum file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			registry, err := curriculum.LoadYAML(args[0])
			if err != nil {
				exitErr("validate curriculum", err)
			}
			fmt.Printf("ok: %d skills\n", registry.Len())
		},
	}

	convert := &cobra.Command{
		Use:   "convert <workbook.xlsx> <curriculum.yaml>",
		Short: "Convert a curriculum workbook to the YAML registry format",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			specs, err := curriculum.ImportWorkbook(args[0])
			if err != nil {
				exitErr("import workbook", err)
			}
			if _, err := curriculum.New(specs); err != nil {
				exitErr("validate imported curriculum", err)
			}
			data, err := yaml.Marshal(curriculum.File{Skills: specs})
			if err != nil {
				exitErr("encode curriculum", err)
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				exitErr("write curriculum", err)
			}
			fmt.Printf("wrote %d skills to %s\n", len(specs), args[1])
		},
	}

	root.AddCommand(validate, convert)
	RootCmd.AddCommand(root)
}
