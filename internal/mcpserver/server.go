// Package mcpserver exposes the anomaly-detection pipeline as an MCP
// tool server, adapted from the teacher's internal/mcp package: the
// same server.MCPServer/stdio wiring, generalized from system
// collectors to stormphase's list_engines/run_pipeline/get_thresholds
// tools.
package mcpserver

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server instance.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server with the pipeline's tools
// registered.
func NewServer(version string) *Server {
	s := server.NewMCPServer("stormphase", version, server.WithLogging())
	registerTools(s)
	return &Server{mcpServer: s}
}

// Start runs the server in stdio mode (blocking).
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func registerTools(s *server.MCPServer) {
	listEnginesTool := mcp.NewTool("list_engines",
		mcp.WithDescription("List the registered anomaly-scoring engines (spc, isolation_forest, basic_arima, sarimax, iterative_arima, binary_segmentation)."),
	)
	s.AddTool(listEnginesTool, handleListEngines)

	runPipelineTool := mcp.NewTool("run_pipeline",
		mcp.WithDescription("Preprocess, score with one engine, and optimize a threshold over a station batch. Returns the chosen threshold and its F-beta."),
		mcp.WithString("x_dir", mcp.Required(), mcp.Description("Directory of <station_id>.csv measured/bottom-up series")),
		mcp.WithString("y_dir", mcp.Required(), mcp.Description("Directory of <station_id>.csv labels")),
		mcp.WithString("engine",
			mcp.Description("Scoring engine to run"),
			mcp.DefaultString("spc"),
			mcp.Enum("spc", "isolation_forest", "basic_arima", "sarimax", "iterative_arima", "binary_segmentation"),
		),
		mcp.WithString("threshold_variant",
			mcp.Description("single or double threshold optimization"),
			mcp.DefaultString("single"),
			mcp.Enum("single", "double"),
		),
	)
	s.AddTool(runPipelineTool, handleRunPipeline)

	getThresholdsTool := mcp.NewTool("get_thresholds",
		mcp.WithDescription("Read back a previously stored model's fitted threshold state by its model string."),
		mcp.WithString("store_dir", mcp.Required(), mcp.Description("Model store base directory")),
		mcp.WithString("method", mcp.Required(), mcp.Description("Engine name the model was stored under, e.g. spc or binary_segmentation")),
		mcp.WithString("preprocessing_hash", mcp.Required(), mcp.Description("Hash of the preprocessing configuration the model was fit against")),
		mcp.WithString("model_string", mcp.Required(), mcp.Description("Canonical engine hyperparameter string used as the store key")),
	)
	s.AddTool(getThresholdsTool, handleGetThresholds)
}
