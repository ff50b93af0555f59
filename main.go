package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"highlight-reel-pipeline/acquisition"
	"highlight-reel-pipeline/assembler"
	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/discovery"
	"highlight-reel-pipeline/llm"
	"highlight-reel-pipeline/logger"
	"highlight-reel-pipeline/mediatool"
	"highlight-reel-pipeline/narration"
	"highlight-reel-pipeline/pipeline"
	"highlight-reel-pipeline/scorer"
	"highlight-reel-pipeline/transcript"
	"highlight-reel-pipeline/tts"
	"highlight-reel-pipeline/types"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 ok, 1 reel not produced, 2 run not started
func run() int {
	// Load .env (local dev only)
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	resumeDir := flag.String("resume", "", "resume the run in this directory instead of starting a new one")
	from := flag.String("from", pipeline.StageNarrate, "first stage to rerun when resuming (ingest|analyze|narrate|assemble)")
	flag.Parse()

	log := logger.New()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, closeAll := build(ctx, cfg, log)
	defer closeAll()

	var report *types.PipelineRunReport
	if *resumeDir != "" {
		report, err = orch.Resume(ctx, *resumeDir, *from)
	} else {
		report, err = orch.Run(ctx)
	}
	if err != nil {
		log.WithError(err).Error("pipeline could not start")
		return 2
	}
	if !report.OK {
		return 1
	}
	return 0
}

// build wires every stage. Optional collaborators that cannot be set up are
// logged and left out; their stages fall back on their own. The returned
// func releases connections held by the collaborators.
func build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*pipeline.Orchestrator, func()) {
	runner := mediatool.NewExecRunner(log.Stage("exec"))
	encoders := mediatool.NewEncoderPolicy(cfg.Render.Mode, log.Stage("encode"))
	ingestLog := log.Stage(pipeline.StageIngest)

	var sources []discovery.Source
	if yt, err := discovery.NewYouTube(ctx, cfg.Discovery.YouTube, cfg.Secrets); err == nil {
		sources = append(sources, yt)
	} else {
		logSetup(log, "youtube source", err)
	}
	if rd, err := discovery.NewReddit(cfg.Discovery.Reddit, cfg.Secrets.RedditUserAgent); err == nil {
		sources = append(sources, rd)
	} else {
		logSetup(log, "reddit source", err)
	}
	closeAll := func() {}
	seen, err := discovery.NewSeenStore(ctx, cfg.Discovery.SeenStore, cfg.Secrets.RedisPassword)
	if err != nil {
		logSetup(log, "seen store", err)
	}
	if c, ok := seen.(io.Closer); ok {
		closeAll = func() {
			if err := c.Close(); err != nil {
				log.WithError(err).Warn("⚠️  closing seen store")
			}
		}
	}

	llmClient := llm.New(cfg.LLM, cfg.Secrets.GroqAPIKey, log.Stage("llm"))
	if !llmClient.Enabled() {
		log.Warn("⚠️  GROQ_API_KEY not set, narration and clip ordering use fallbacks")
	}

	orch := pipeline.New(cfg, log)
	orch.Discovery = discovery.New(cfg.Discovery, sources, seen, ingestLog)
	orch.Acquisition = acquisition.New(cfg.Acquisition, cfg.Render, runner, encoders, ingestLog)
	orch.Transcripts = transcript.NewSource(cfg, runner, cfg.Acquisition.FootageDir, log.Stage(pipeline.StageAnalyze))
	orch.Scorer = scorer.New(cfg.Analysis, llmClient, log.Stage(pipeline.StageAnalyze))
	orch.Narration = narration.New(cfg, llmClient, tts.NewChain(cfg, runner), runner, log.Stage(pipeline.StageNarrate))
	orch.Assembly = assembler.New(cfg.Render, runner, encoders, log.Stage(pipeline.StageAssemble))

	orch.Sinks = []pipeline.Sink{&pipeline.LatestSink{Dir: cfg.Run.ReportDir}}
	if cfg.Storage.MinIO.Enabled {
		sink, err := pipeline.NewMinIOSink(ctx, cfg.Storage.MinIO, cfg.Secrets.MinIOAccessKey, cfg.Secrets.MinIOSecretKey)
		if err != nil {
			logSetup(log, "minio report sink", err)
		} else {
			orch.Sinks = append(orch.Sinks, sink)
		}
	}
	return orch, closeAll
}

func logSetup(log *logger.Logger, what string, err error) {
	if errors.Is(err, discovery.ErrNotConfigured) {
		log.Infof("%s not configured, skipping", what)
		return
	}
	log.WithError(err).Warnf("⚠️  %s unavailable", what)
}
