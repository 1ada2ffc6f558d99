package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"ensrest"
	"ensrest/params"
	"ensrest/session"
	"ensrest/storage"
	"ensrest/trace"
)

var (
	logFormat string
	logLevel  string

	setFlags    []string
	csvDir      string
	tracePath   string
	plotDir     string
	archivePath string

	showTrace   string
	runsArchive string
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ensrest",
		Short: "restrained-ensemble bias potential runner",
		Long: "ensrest drives in-process ensembles of replicas under a " +
			"restrained-ensemble bias potential, and inspects what they produced.",
		PersistentPreRunE: setupLogging,
	}
	rootCmd.PersistentFlags().StringVar(&logFormat, "log", "text", "log format (text|json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "write a default parameter file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initParams,
	}

	runCmd := &cobra.Command{
		Use:   "run [file]",
		Short: "run an in-process ensemble",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEnsemble,
	}
	runCmd.Flags().StringArrayVar(&setFlags, "set", nil, "override a parameter, key=value (repeatable)")
	runCmd.Flags().StringVar(&csvDir, "csv", "", "write per-rotation telemetry CSV into this directory")
	runCmd.Flags().StringVar(&tracePath, "trace", "", "write the rotation history to this file (.erh/.zerh/.gerh/.lerh)")
	runCmd.Flags().StringVar(&plotDir, "plots", "", "write final-state plots into this directory")
	runCmd.Flags().StringVar(&archivePath, "archive", "", "archive the run in this sqlite database")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "replay a rotation-history file",
		RunE:  showHistory,
	}
	showCmd.Flags().StringVar(&showTrace, "trace", "", "history file to replay")
	showCmd.MarkFlagRequired("trace")

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list archived sessions",
		RunE:  listRuns,
	}
	runsCmd.Flags().StringVar(&runsArchive, "archive", "", "sqlite archive to list")
	runsCmd.MarkFlagRequired("archive")

	rootCmd.AddCommand(initCmd, runCmd, showCmd, runsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q", logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch logFormat {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q", logFormat)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func paramsPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "params.yaml"
}

func initParams(cmd *cobra.Command, args []string) error {
	path := paramsPath(args)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", path)
	}
	if err := params.Default().Save(path); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	f, err := params.Load(paramsPath(args))
	if err != nil {
		return err
	}
	for _, kv := range setFlags {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("--set wants key=value, got %q", kv)
		}
		if err := f.Set(key, value); err != nil {
			return err
		}
	}
	conf, err := f.Config()
	if err != nil {
		return err
	}
	o := session.DefaultOptions()
	o.Replicas = f.Run.Replicas
	o.Steps = f.Run.Steps
	o.Dt = f.Run.Dt
	o.Seed = f.Run.Seed
	o.StartDist = f.Run.StartDist
	o.Diffusion = f.Run.Diffusion
	o.KT = f.Run.KT
	o.Label = f.Run.Label
	o.CSVDir = csvDir
	o.TracePath = tracePath
	o.PlotDir = plotDir
	o.ArchivePath = archivePath
	if archivePath != "" {
		//the archive keeps the effective parameters, overrides included
		yml, err := f.YAML()
		if err != nil {
			return err
		}
		o.ParamsYAML = yml
	}
	s, err := session.New(&conf, f.Sites, o)
	if err != nil {
		return err
	}
	sum, err := s.Run(context.Background())
	if err != nil {
		return err
	}
	printSummary(sum, conf)
	return nil
}

func printSummary(sum *session.Summary, conf ensrest.Config) {
	fmt.Println(headerStyle.Render("session " + sum.ID + " (" + sum.Label + ")"))
	row := func(label, value string) {
		fmt.Println(labelStyle.Render(label) + valueStyle.Render(value))
	}
	row("replicas", fmt.Sprintf("%d", sum.Replicas))
	row("steps", humanize.Comma(int64(sum.Steps)))
	row("elapsed", sum.Elapsed.String())
	row("rotations", fmt.Sprintf("%d per replica", sum.Rotations[0]))
	row("divergence", fmt.Sprintf("%.4g", sum.Divergence[0]))
	row("timing", sum.Timing.String())
	fmt.Println()
	fmt.Println(renderHistogram(sum.Histogram, conf.BinWidth,
		"bias histogram (mean deviation from reference)"))
}

func renderHistogram(hist []float64, binWidth float64, caption string) string {
	if len(hist) == 0 {
		return warnStyle.Render("nothing to plot")
	}
	return asciigraph.Plot(hist,
		asciigraph.Height(10),
		asciigraph.Width(70),
		asciigraph.Caption(fmt.Sprintf("%s, %v nm per bin", caption, binWidth)))
}

func showHistory(cmd *cobra.Command, args []string) error {
	r, meta, err := trace.New(showTrace)
	if err != nil {
		return err
	}
	defer r.Close()
	if meta != nil {
		fmt.Println(headerStyle.Render("history " + showTrace))
		for k, v := range meta {
			fmt.Println(labelStyle.Render(k) + valueStyle.Render(v))
		}
		fmt.Println()
	}
	win := make([]float64, r.Bins())
	n := 0
	for {
		info, err := r.Next(win)
		if err != nil {
			if _, ok := err.(ensrest.LastRecordError); ok {
				break
			}
			return err
		}
		caption := fmt.Sprintf("window %d, replica %d, t=%v", info.Window, info.Replica, info.Time)
		fmt.Println(renderHistogram(win, r.BinWidth(), caption))
		fmt.Println()
		n++
	}
	fmt.Printf("%d frames\n", n)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := storage.Open(ctx, runsArchive)
	if err != nil {
		return err
	}
	defer store.Close()
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println(warnStyle.Render("no archived sessions"))
		return nil
	}
	for _, s := range sessions {
		rots, err := store.Rotations(ctx, s.ID)
		if err != nil {
			return err
		}
		fmt.Println(headerStyle.Render(s.Label) + valueStyle.Render(" "+s.ID))
		fmt.Println(labelStyle.Render("created") + valueStyle.Render(humanize.Time(s.CreatedAt)))
		fmt.Println(labelStyle.Render("replicas") + valueStyle.Render(fmt.Sprintf("%d", s.Replicas)))
		fmt.Println(labelStyle.Render("steps") + valueStyle.Render(humanize.Comma(int64(s.Steps))))
		fmt.Println(labelStyle.Render("rotations") + valueStyle.Render(humanize.Comma(int64(len(rots)))))
		fmt.Println()
	}
	return nil
}
