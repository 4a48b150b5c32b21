// Command wasm3 compiles a standalone Wasm function body to threaded code
// and prints the resulting code-page listing. It exists for poking at the
// compiler; module files are handled elsewhere.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/szsam/wasm3/internal/engine/compiler"
	"github.com/szsam/wasm3/internal/leb128"
	"github.com/szsam/wasm3/internal/wasm"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wasm3",
		Short: "wasm3 — single-pass Wasm to threaded-code compiler",
	}

	var sig string
	var localsSpec string
	var bodyHex string
	var trace bool

	compileCmd := &cobra.Command{
		Use:   "compile [body.bin]",
		Short: "Compile one function body and dump its threaded code",
		Long: `Compile one function body and dump its threaded code.

The body is the code-entry expression without the locals vector; declare
locals with --locals. Pass the bytes as a file argument or with --hex.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if trace {
				logrus.SetLevel(logrus.TraceLevel)
			}

			funcType, err := parseSignature(sig)
			if err != nil {
				return err
			}

			var expr []byte
			switch {
			case bodyHex != "":
				expr, err = hex.DecodeString(strings.ReplaceAll(bodyHex, " ", ""))
			case len(args) == 1:
				expr, err = os.ReadFile(args[0])
			default:
				return fmt.Errorf("need a body file argument or --hex")
			}
			if err != nil {
				return err
			}

			locals, err := encodeLocals(localsSpec)
			if err != nil {
				return err
			}
			body := append(locals, expr...)

			runtime := wasm.NewRuntime()
			module := &wasm.Module{Name: "cli"}
			runtime.AddModule(module)
			fn := module.AddFunction("main", funcType, body)

			if err := compiler.CompileFunction(fn); err != nil {
				return err
			}

			fmt.Printf("compiled entry pc: %d\n", fn.Compiled)
			fmt.Printf("max stack slots:   %d\n", fn.MaxStackSlots)
			fmt.Printf("ret+arg slots:     %d\n", fn.NumRetAndArgSlots)
			fmt.Printf("local bytes:       %d\n", fn.NumLocalBytes)
			fmt.Printf("constant bytes:    %d\n", fn.NumConstantBytes)
			fmt.Println()

			for _, page := range runtime.Pages() {
				words := page.Words()
				if len(words) == 0 {
					continue
				}
				fmt.Printf("page @ %d:\n", page.Base())
				for i, cell := range words {
					name := compiler.OperationName(cell)
					if name != "" {
						fmt.Printf("  %6d  %-24s (%d)\n", uint64(page.Base())+uint64(i), name, cell)
					} else {
						fmt.Printf("  %6d  %24d\n", uint64(page.Base())+uint64(i), cell)
					}
				}
			}
			return nil
		},
	}
	compileCmd.Flags().StringVar(&sig, "sig", "()->()", "function signature, e.g. '(i32,i32)->i32'")
	compileCmd.Flags().StringVar(&localsSpec, "locals", "", "locals, e.g. 'i32:1,i64:2'")
	compileCmd.Flags().StringVar(&bodyHex, "hex", "", "body bytes as hex instead of a file")
	compileCmd.Flags().BoolVar(&trace, "trace", false, "log every compiled opcode")
	rootCmd.AddCommand(compileCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var typeNames = map[string]wasm.ValueType{
	"i32": wasm.ValueTypeI32,
	"i64": wasm.ValueTypeI64,
	"f32": wasm.ValueTypeF32,
	"f64": wasm.ValueTypeF64,
}

var typeEncodings = map[wasm.ValueType]byte{
	wasm.ValueTypeI32: 0x7f,
	wasm.ValueTypeI64: 0x7e,
	wasm.ValueTypeF32: 0x7d,
	wasm.ValueTypeF64: 0x7c,
}

func parseTypeList(s string) ([]wasm.ValueType, error) {
	s = strings.Trim(s, "()")
	if s == "" {
		return nil, nil
	}
	var types []wasm.ValueType
	for _, name := range strings.Split(s, ",") {
		vt, ok := typeNames[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("unknown value type %q", name)
		}
		types = append(types, vt)
	}
	return types, nil
}

// parseSignature parses "(i32,i32)->i32" style signatures.
func parseSignature(s string) (*wasm.FunctionType, error) {
	parts := strings.SplitN(s, "->", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("signature %q: want '(args)->(results)'", s)
	}
	args, err := parseTypeList(parts[0])
	if err != nil {
		return nil, err
	}
	results, err := parseTypeList(parts[1])
	if err != nil {
		return nil, err
	}
	return &wasm.FunctionType{Args: args, Results: results}, nil
}

// encodeLocals renders an 'i32:1,i64:2' spec as a binary locals vector.
func encodeLocals(spec string) ([]byte, error) {
	if spec == "" {
		return []byte{0x00}, nil
	}
	type localBlock struct {
		vt    wasm.ValueType
		count uint32
	}
	var entries []localBlock
	for _, part := range strings.Split(spec, ",") {
		kv := strings.SplitN(part, ":", 2)
		vt, ok := typeNames[strings.TrimSpace(kv[0])]
		if !ok {
			return nil, fmt.Errorf("unknown local type %q", kv[0])
		}
		count := uint32(1)
		if len(kv) == 2 {
			if _, err := fmt.Sscanf(kv[1], "%d", &count); err != nil {
				return nil, fmt.Errorf("bad local count %q", kv[1])
			}
		}
		entries = append(entries, localBlock{vt, count})
	}

	out := leb128.EncodeUint32(uint32(len(entries)))
	for _, e := range entries {
		out = append(out, leb128.EncodeUint32(e.count)...)
		out = append(out, typeEncodings[e.vt])
	}
	return out, nil
}
