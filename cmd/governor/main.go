package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/agentgov/governor/internal/config"
	"github.com/agentgov/governor/internal/engine"
	"github.com/agentgov/governor/internal/models"

	"github.com/fatih/color"
)

func main() {
	configPath := flag.String("config", "governor.yaml", "path to governor config file")
	envPath := flag.String("env", "", "optional .env file to load before config")
	agentID := flag.String("agent", "demo-agent", "agent id for the sample evaluation")
	sessionKey := flag.String("session", "agent:demo-agent:session:1", "session key for the sample evaluation")
	toolName := flag.String("tool", "read", "tool name for the sample before_tool_call evaluation")
	flag.Parse()

	color.Cyan("========================================================")
	color.Cyan("  Agent Governance Engine")
	color.Cyan("========================================================")
	fmt.Println()

	if *envPath != "" {
		if err := config.LoadEnvFile(*envPath, false); err != nil {
			log.Fatalf("[governor] load env file: %v", err)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		color.Yellow("[governor] could not load %s (%v), using defaults", *configPath, err)
		def := config.Default()
		cfg = &def
	}

	eng, err := engine.New(*cfg)
	if err != nil {
		log.Fatalf("[governor] construct engine: %v", err)
	}
	if err := eng.Start(); err != nil {
		log.Fatalf("[governor] start engine: %v", err)
	}
	defer func() {
		if err := eng.Stop(); err != nil {
			log.Printf("[governor] stop engine: %v", err)
		}
	}()

	color.Green("engine started  workspace=%s failMode=%s", cfg.Workspace, cfg.FailMode)
	fmt.Println()

	verdict, err := eng.EvaluateToolCall(engine.ToolCallInput{
		AgentID:    *agentID,
		SessionKey: *sessionKey,
		Channel:    "cli",
		ToolName:   *toolName,
		ToolParams: map[string]interface{}{},
	})
	if err != nil {
		log.Fatalf("[governor] evaluate: %v", err)
	}
	printVerdict(verdict)

	status := eng.GetStatus()
	printStatus(status)
}

func printVerdict(v models.Verdict) {
	switch v.Action {
	case models.ActionAllow:
		color.Green("verdict: %s", v.Action)
	case models.ActionDeny:
		color.Red("verdict: %s", v.Action)
	case models.ActionEscalate:
		color.Yellow("verdict: %s", v.Action)
	default:
		fmt.Printf("verdict: %s\n", v.Action)
	}
	fmt.Printf("  reason: %s\n", v.Reason)
	fmt.Printf("  risk:   %s (%d)\n", v.Risk.Level, v.Risk.Score)
	fmt.Printf("  trust:  %s (%d)\n", v.Trust.Tier, v.Trust.Score)
	fmt.Printf("  took:   %dus\n", v.EvaluationUs)
	if len(v.MatchedPolicies) > 0 {
		b, _ := json.MarshalIndent(v.MatchedPolicies, "  ", "  ")
		fmt.Printf("  matched: %s\n", string(b))
	}
	fmt.Println()
}

func printStatus(s engine.Status) {
	color.Cyan("--------------------------------------------------------")
	fmt.Printf("enabled=%v policies=%d trust=%v audit=%v failMode=%s\n",
		s.Enabled, s.PolicyCount, s.TrustEnabled, s.AuditEnabled, s.FailMode)
	fmt.Printf("stats: total=%d allow=%d deny=%d escalate=%d errors=%d meanUs=%.1f\n",
		s.Stats.Total, s.Stats.Allowed, s.Stats.Denied, s.Stats.Escalated, s.Stats.Errors, s.Stats.MeanEvalUs)
}
