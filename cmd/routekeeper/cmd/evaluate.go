package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/routekeeper/internal/core/api"
	"github.com/solatis/routekeeper/internal/domain"
	"github.com/solatis/routekeeper/internal/interpreter"
	"github.com/solatis/routekeeper/internal/types"
)

var (
	evalInput   string
	evalProgram string
	evalAddr    string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Route one payment input",
	Long: `Evaluate a payment input (JSON) against a program file, the store's active
program, or a running server (--addr).`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVarP(&evalInput, "input", "i", "-", "payment input JSON file (- for stdin)")
	evaluateCmd.Flags().StringVarP(&evalProgram, "program", "p", "", "program file; default is the store's active program")
	evaluateCmd.Flags().StringVar(&evalAddr, "addr", "", "evaluate on a running server at host:port")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	raw, err := readInput(cmd, evalInput)
	if err != nil {
		return err
	}

	if evalAddr != "" {
		return evaluateRemote(cmd, raw)
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}
	if evalProgram != "" {
		p, err := readProgram(cmd, evalProgram)
		if err != nil {
			return err
		}
		if _, err := eng.Registry.Activate(ctx, types.NewProgramID(), p); err != nil {
			return err
		}
	} else {
		database, store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()
		rec, err := store.Active(ctx)
		if err != nil {
			return err
		}
		if _, err := eng.Registry.Activate(ctx, rec.ID, rec.Program); err != nil {
			return err
		}
	}

	var input domain.Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	res, evalErr := eng.Registry.Evaluate(ctx, input)
	var ie *interpreter.InterpreterError
	if evalErr != nil && !errors.As(evalErr, &ie) {
		return evalErr
	}
	out, err := api.EncodeResult(res, evalErr)
	if err != nil {
		return err
	}
	return printStruct(cmd, out)
}

func evaluateRemote(cmd *cobra.Command, raw []byte) error {
	req := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, req); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}

	conn, err := grpc.NewClient(evalAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", evalAddr, err)
	}
	defer conn.Close()

	ctx, cancel := contextWithTimeout(cmd)
	defer cancel()
	resp, err := api.NewRoutingClient(conn).Evaluate(ctx, req)
	if err != nil {
		return err
	}
	return printStruct(cmd, resp)
}

func printStruct(cmd *cobra.Command, s *structpb.Struct) error {
	data, err := protojson.MarshalOptions{Multiline: true}.Marshal(s)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
