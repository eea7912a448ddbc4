package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rbouman/stormphase/internal/engine"
	"github.com/rbouman/stormphase/internal/engine/arima"
	"github.com/rbouman/stormphase/internal/engine/binseg"
	"github.com/rbouman/stormphase/internal/engine/isoforest"
	"github.com/rbouman/stormphase/internal/eventlen"
	"github.com/rbouman/stormphase/internal/ingest"
	"github.com/rbouman/stormphase/internal/preprocess"
	"github.com/rbouman/stormphase/internal/stationdata"
	"github.com/rbouman/stormphase/internal/store"
	"github.com/rbouman/stormphase/internal/threshold"
)

// runPipelineTimeout bounds the worst case of preprocessing + scoring +
// optimizing a full batch through an MCP call.
const runPipelineTimeout = 5 * time.Minute

func handleListEngines(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names := buildRegistry().Names()
	data, err := json.MarshalIndent(map[string]interface{}{"engines": names}, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(data)), nil
}

func handleRunPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, runPipelineTimeout)
	defer cancel()

	args := getArgs(request)
	xDir := stringArg(args, "x_dir", "")
	yDir := stringArg(args, "y_dir", "")
	engineName := stringArg(args, "engine", "spc")
	variant := stringArg(args, "threshold_variant", "single")

	if xDir == "" || yDir == "" {
		return errResult("x_dir and y_dir are required"), nil
	}

	batch, err := ingest.LoadBatch(xDir, yDir)
	if err != nil {
		return errResult(fmt.Sprintf("load batch: %v", err)), nil
	}

	pre := preprocess.DefaultConfig()
	var pb stationdata.PreprocessedBatch
	var filters []stationdata.LengthFilterBank
	for _, raw := range batch.Stations {
		p, err := preprocess.Preprocess(raw, pre)
		if err != nil {
			continue
		}
		pb.Stations = append(pb.Stations, p)
		lengths := eventlen.EventLengths(p.Label)
		filters = append(filters, eventlen.Filters(lengths, eventlen.DefaultCutoffs(), nil, false, p.Missing, p.Label))
	}
	if len(pb.Stations) == 0 {
		return errResult("no stations preprocessed successfully"), nil
	}

	reg := buildRegistry()
	producer, ok := reg.Build(engineName)
	if !ok {
		return errResult(fmt.Sprintf("unknown engine %q", engineName)), nil
	}

	scores, err := producer.FitTransformPredict(ctx, &pb)
	if err != nil {
		return errResult(fmt.Sprintf("scoring failed: %v", err)), nil
	}

	usedBuckets := defaultBucketKeys()
	result := map[string]interface{}{
		"engine":       producer.Name(),
		"model_string": producer.ModelString(),
		"stations":     len(pb.Stations),
	}
	if variant == "double" {
		r := threshold.OptimizeDouble(scores, &pb, filters, usedBuckets, threshold.DefaultBeta)
		result["tau_neg"] = r.TauNeg
		result["tau_pos"] = r.TauPos
		result["f_beta"] = r.FBeta
	} else {
		r := threshold.OptimizeSingle(scores, &pb, filters, usedBuckets, threshold.DefaultBeta)
		result["tau"] = r.Tau
		result["f_beta"] = r.FBeta
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(data)), nil
}

func handleGetThresholds(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	storeDir := stringArg(args, "store_dir", "")
	methodName := stringArg(args, "method", "")
	preprocessingHash := stringArg(args, "preprocessing_hash", "")
	modelString := stringArg(args, "model_string", "")
	if storeDir == "" || methodName == "" || preprocessingHash == "" || modelString == "" {
		return errResult("store_dir, method, preprocessing_hash and model_string are required"), nil
	}

	s, err := store.New(storeDir, methodName, preprocessingHash)
	if err != nil {
		return errResult(fmt.Sprintf("open store: %v", err)), nil
	}
	rec, ok, err := s.Load(modelString)
	if err != nil {
		return errResult(fmt.Sprintf("load record: %v", err)), nil
	}
	if !ok {
		return errResult("no stored record for that model string"), nil
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(data)), nil
}

func buildRegistry() engine.Registry {
	reg := engine.NewRegistry()
	reg.Register("spc", engine.NewSPC)
	reg.Register("isolation_forest", func() engine.ScoreProducer { return isoforest.New() })
	reg.Register("basic_arima", func() engine.ScoreProducer { return arima.NewBasic() })
	reg.Register("sarimax", func() engine.ScoreProducer { return arima.NewSARIMAX() })
	reg.Register("iterative_arima", func() engine.ScoreProducer { return arima.NewIterative() })
	reg.Register("binary_segmentation", func() engine.ScoreProducer { return binseg.New() })
	return reg
}

func defaultBucketKeys() []string {
	cutoffs := eventlen.DefaultCutoffs()
	keys := make([]string, len(cutoffs))
	for i, c := range cutoffs {
		keys[i] = c.Key()
	}
	return keys
}

// getArgs safely extracts the arguments map from a CallToolRequest.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

// stringArg extracts a string argument with a default value.
func stringArg(args map[string]interface{}, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
	}
}
