package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/awsm-dev/awsm/internal/engine"
	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/history"
	"github.com/awsm-dev/awsm/internal/httpclient"
	"github.com/awsm-dev/awsm/internal/materialize"
	"github.com/awsm-dev/awsm/internal/model"
	"github.com/awsm-dev/awsm/internal/oauth"
	"github.com/awsm-dev/awsm/internal/scripts"
	"github.com/awsm-dev/awsm/internal/workspace"
)

func (a *app) sendCommand() *cobra.Command {
	var (
		envRef string
		save   bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "send <request id|name|path>",
		Short: "Send a stored request and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.Load(a.workspacePath)
			if err != nil {
				return err
			}
			id, ok := ws.FindRequest(args[0])
			if !ok {
				return errdef.New(errdef.CodeValidation, "request %q not found", args[0])
			}
			def, _ := ws.Request(id)
			if envRef != "" {
				env, ok := ws.Variables().Find(envRef)
				if !ok {
					return errdef.New(errdef.CodeValidation, "environment %q not found", envRef)
				}
				if err := ws.Variables().SetActive(env.ID); err != nil {
					return err
				}
			}

			store, closeStore, err := a.historyStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			eng := a.newEngine(ws, store)
			out := eng.Send(cmd.Context(), id, def)

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), outcomeView(out)); err != nil {
					return err
				}
			} else {
				printOutcome(cmd.OutOrStdout(), out)
			}

			if save {
				if err := workspace.Save(a.workspacePath, ws); err != nil {
					return err
				}
			}
			switch {
			case out.PreScriptError != nil:
				return errdef.Wrap(errdef.CodeScript, out.PreScriptError, "pre-request script")
			case out.Err != nil:
				return out.Err
			}
			if _, failed := out.TestsPassed(); failed > 0 || out.TestScriptError != nil {
				return errTestsFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&envRef, "env", "e", "", "Environment id or name to activate")
	cmd.Flags().BoolVar(&save, "save", false, "Write variable changes back to the workspace file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the outcome as JSON")
	return cmd
}

func (a *app) newEngine(ws *workspace.Workspace, store history.Store) *engine.Engine {
	client := httpclient.NewClient(httpclient.Options{
		Timeout:            a.settings.HTTP.TimeoutDuration(),
		FollowRedirects:    a.settings.HTTP.FollowRedirects,
		InsecureSkipVerify: a.settings.HTTP.Insecure,
		ProxyURL:           a.settings.HTTP.Proxy,
	})
	client.SetTelemetry(a.telemetry)
	client.SetLogger(a.logger.Named("http"))

	runner := scripts.NewRunner(
		scripts.WithTimeout(a.settings.Scripts.TimeoutDuration()),
		scripts.WithLogger(a.logger.Named("scripts")),
	)
	return engine.New(client, ws.Variables(),
		engine.WithScripts(runner),
		engine.WithHistory(store),
		engine.WithTokens(oauth.NewManager(nil)),
		engine.WithTelemetry(a.telemetry),
		engine.WithLogger(a.logger.Named("engine")),
		engine.WithLocale(a.settings.Locale),
		engine.WithPersistScriptVariables(a.settings.PersistScriptVariables),
		engine.WithMaterializeOptions(materialize.Options{BaseDir: filepath.Dir(a.workspacePath)}),
		engine.WithPhaseHook(func(id string, p engine.Phase) {
			a.logger.Debug("phase", zap.String("request", id), zap.Stringer("phase", p))
		}),
	)
}

func printOutcome(w io.Writer, out engine.Outcome) {
	if out.Request != nil {
		fmt.Fprintf(w, "%s %s\n", out.Request.Method, out.Request.URL)
	}
	if out.PreScriptError != nil {
		fmt.Fprintf(w, "pre-request script error: %s\n", errdef.Message(out.PreScriptError))
	}
	if resp := out.Response; resp != nil {
		fmt.Fprintf(w, "\n%d %s  (%d ms, %d bytes)\n", resp.Status, resp.StatusText, resp.Time, resp.Size)
		for _, k := range sortedKeys(resp.Headers) {
			fmt.Fprintf(w, "%s: %s\n", k, resp.Headers[k])
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, prettyBody(*resp))
	}
	if len(out.Logs) > 0 {
		fmt.Fprintln(w, "\nlogs:")
		for _, line := range out.Logs {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	if len(out.TestResults) > 0 {
		fmt.Fprintln(w, "\ntests:")
		for _, r := range out.TestResults {
			mark := "PASS"
			if r.Status != model.TestPassed {
				mark = "FAIL"
			}
			line := fmt.Sprintf("  %s %s", mark, r.Name)
			if r.Error != "" {
				line += ": " + r.Error
			}
			fmt.Fprintln(w, line)
		}
		passed, failed := out.TestsPassed()
		fmt.Fprintf(w, "  %d passed, %d failed\n", passed, failed)
	}
	if out.TestScriptError != nil {
		fmt.Fprintf(w, "test script error: %s\n", errdef.Message(out.TestScriptError))
	}
}

func prettyBody(resp model.ResponseEnvelope) string {
	switch resp.Body.(type) {
	case map[string]any, []any:
		data, err := json.MarshalIndent(resp.Body, "", "  ")
		if err == nil {
			return string(data)
		}
	}
	return resp.RawBody
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errdef.Wrap(errdef.CodeParse, err, "encode output")
	}
	return nil
}

type outcomeJSON struct {
	RequestID       string                  `json:"requestId"`
	Phase           engine.Phase            `json:"phase"`
	Method          string                  `json:"method,omitempty"`
	URL             string                  `json:"url,omitempty"`
	Response        *model.ResponseEnvelope `json:"response,omitempty"`
	Logs            []string                `json:"logs,omitempty"`
	Variables       map[string]string       `json:"variables,omitempty"`
	Stale           bool                    `json:"stale,omitempty"`
	PreScriptError  string                  `json:"preScriptError,omitempty"`
	TestScriptError string                  `json:"testScriptError,omitempty"`
	Error           string                  `json:"error,omitempty"`
}

func outcomeView(out engine.Outcome) outcomeJSON {
	v := outcomeJSON{
		RequestID: out.RequestID,
		Phase:     out.Phase,
		Response:  out.Response,
		Logs:      out.Logs,
		Variables: out.Variables,
		Stale:     out.Stale,
	}
	if out.Request != nil {
		v.Method = string(out.Request.Method)
		v.URL = out.Request.URL
	}
	if out.PreScriptError != nil {
		v.PreScriptError = errdef.Message(out.PreScriptError)
	}
	if out.TestScriptError != nil {
		v.TestScriptError = errdef.Message(out.TestScriptError)
	}
	if out.Err != nil {
		v.Error = out.Err.Error()
	}
	return v
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
