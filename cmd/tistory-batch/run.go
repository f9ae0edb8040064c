package tistorybatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/temirov/tistory-batch/internal/batch"
	"github.com/temirov/tistory-batch/internal/content"
	"github.com/temirov/tistory-batch/internal/export"
	"github.com/temirov/tistory-batch/internal/metrics"
)

type runCommandOptions struct {
	topicsFile      string
	keywords        string
	category        content.Category
	tone            content.Tone
	model           string
	limit           string
	delay           time.Duration
	exports         []string
	exportDirectory string
	metricsTextfile string
}

type exportTarget struct {
	format export.Format
	path   string
}

func newRunCommand() *cobra.Command {
	options := &runCommandOptions{}

	command := &cobra.Command{
		Use:   runCommandUse,
		Short: runCommandShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			environment, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer environment.close()

			signals := make(chan os.Signal, 2)
			signal.Notify(signals, os.Interrupt)
			defer signal.Stop(signals)
			return runBatchCommand(cmd, environment, *options, args, signals)
		},
	}

	bindRunFlags(command.Flags(), options)
	return command
}

func bindRunFlags(flags *pflag.FlagSet, options *runCommandOptions) {
	flags.StringVar(&options.topicsFile, topicsFileFlagName, "", topicsFileFlagUsage)
	flags.StringVar(&options.keywords, keywordsFlagName, "", keywordsFlagUsage)
	flags.Var(newCategoryValue(&options.category), categoryFlagName, categoryUsage())
	flags.Var(newToneValue(&options.tone), toneFlagName, toneUsage())
	flags.StringVar(&options.model, modelFlagName, "", modelFlagUsage)
	flags.StringVar(&options.limit, limitFlagName, "", limitFlagUsage)
	flags.DurationVar(&options.delay, delayFlagName, 0, delayFlagUsage)
	flags.StringArrayVar(&options.exports, exportFlagName, nil, exportFlagUsage)
	flags.StringVar(&options.exportDirectory, exportDirectoryFlag, "", exportDirectoryUsage)
	flags.StringVar(&options.metricsTextfile, metricsTextfileFlag, "", metricsTextfileUsage)
}

func runBatchCommand(command *cobra.Command, environment session, options runCommandOptions, args []string, signals <-chan os.Signal) error {
	targets, targetsErr := parseExportTargets(options.exports)
	if targetsErr != nil {
		return targetsErr
	}
	topics, topicsErr := collectTopics(command, environment, options, args)
	if topicsErr != nil {
		return topicsErr
	}
	if len(topics) == 0 {
		return batch.ErrNoTopics
	}
	settings, settingsErr := resolveSettings(command, environment, options)
	if settingsErr != nil {
		return settingsErr
	}
	generator, generatorErr := environment.generator()
	if generatorErr != nil {
		return generatorErr
	}
	settings.Generator = generator

	delay := environment.root.Batch.Delay()
	if command.Flags().Changed(delayFlagName) {
		delay = options.delay
	}
	orchestrator := batch.NewOrchestrator(batch.WithDelay(delay), batch.WithLogger(environment.logger))
	recorder := metrics.NewRecorder()
	defer orchestrator.Subscribe(recorder.Observe)()
	output := &lockedWriter{writer: command.OutOrStdout()}
	defer orchestrator.Subscribe(progressPrinter(output))()

	ctx, cancel := context.WithCancel(command.Context())
	defer cancel()
	if _, err := orchestrator.Start(ctx, topics, settings); err != nil {
		return fmt.Errorf(startBatchErrorFormat, err)
	}
	watchDone := make(chan struct{})
	defer close(watchDone)
	go watchInterrupts(signals, watchDone, orchestrator.Stop, cancel, command.ErrOrStderr())

	if err := orchestrator.Wait(context.Background()); err != nil {
		return err
	}

	snapshot := orchestrator.Snapshot()
	var failures []error
	if err := writeExports(environment, options, targets, snapshot.Records, output); err != nil {
		failures = append(failures, err)
	}
	textfile := environment.root.Metrics.Textfile
	if command.Flags().Changed(metricsTextfileFlag) {
		textfile = options.metricsTextfile
	}
	if strings.TrimSpace(textfile) != "" {
		if err := recorder.WriteTextfile(textfile); err != nil {
			failures = append(failures, fmt.Errorf(writeMetricsErrorFormat, err))
		}
	}
	if snapshot.Stats.Succeeded == 0 && snapshot.Stats.Failed > 0 {
		failures = append(failures, fmt.Errorf(allTopicsFailedErrorFormat, snapshot.Stats.Failed))
	}
	return errors.Join(failures...)
}

// collectTopics joins positional topics with the topics file, in that order.
func collectTopics(command *cobra.Command, environment session, options runCommandOptions, args []string) ([]string, error) {
	topics := batch.CleanTopics(args)
	source := strings.TrimSpace(options.topicsFile)
	if source == "" {
		return topics, nil
	}
	var data []byte
	var readErr error
	if source == standardInputTopicFile {
		data, readErr = io.ReadAll(command.InOrStdin())
	} else {
		data, readErr = environment.fileSystem.ReadFile(source)
	}
	if readErr != nil {
		return nil, fmt.Errorf(readTopicsFileErrorFormat, source, readErr)
	}
	return append(topics, batch.ParseTopics(string(data))...), nil
}

// resolveSettings overlays changed flags on the generation section.
func resolveSettings(command *cobra.Command, environment session, options runCommandOptions) (batch.Settings, error) {
	defaults, defaultsErr := generationDefaults(environment)
	if defaultsErr != nil {
		return batch.Settings{}, defaultsErr
	}
	settings := batch.Settings{
		Keywords: defaults.Keywords,
		Category: defaults.Category,
		Tone:     defaults.Tone,
		Model:    defaults.Model,
		Limit:    defaults.Limit,
	}

	flags := command.Flags()
	if flags.Changed(keywordsFlagName) {
		settings.Keywords = strings.TrimSpace(options.keywords)
	}
	if flags.Changed(categoryFlagName) {
		settings.Category = options.category
	}
	if flags.Changed(toneFlagName) {
		settings.Tone = options.tone
	}
	if model := strings.TrimSpace(options.model); flags.Changed(modelFlagName) && model != "" {
		settings.Model = model
	}
	if flags.Changed(limitFlagName) {
		settings.Limit = batch.ResolveLimit(options.limit)
	}
	return settings, nil
}

func parseExportTargets(rawTargets []string) ([]exportTarget, error) {
	targets := make([]exportTarget, 0, len(rawTargets))
	for _, raw := range rawTargets {
		formatName, path, _ := strings.Cut(raw, "=")
		format, err := export.ParseFormat(formatName)
		if err != nil {
			return nil, fmt.Errorf(invalidExportTargetErrorFormat, raw, err)
		}
		targets = append(targets, exportTarget{format: format, path: strings.TrimSpace(path)})
	}
	return targets, nil
}

// writeExports writes every target. Having nothing to export is reported,
// not treated as a failure.
func writeExports(environment session, options runCommandOptions, targets []exportTarget, records []batch.Record, output io.Writer) error {
	directory := environment.root.Export.Directory
	if strings.TrimSpace(options.exportDirectory) != "" {
		directory = options.exportDirectory
	}
	exporter := export.NewExporter(environment.fileSystem, environment.logger)

	var failures []error
	for _, target := range targets {
		written, err := exporter.Export(target.format, target.path, directory, records)
		switch {
		case errors.Is(err, export.ErrNoResults), errors.Is(err, export.ErrNoSuccessfulResults):
			fmt.Fprintf(output, "skipped %s export: %v\n", target.format, err)
		case err != nil:
			failures = append(failures, fmt.Errorf(exportErrorFormat, target.format, err))
		default:
			for _, path := range written {
				fmt.Fprintf(output, "exported %s: %s\n", target.format, path)
			}
		}
	}
	return errors.Join(failures...)
}

// progressPrinter reports each event on one line.
func progressPrinter(output io.Writer) batch.Listener {
	return func(event batch.Event) {
		switch event.Kind {
		case batch.EventProgress:
			fmt.Fprintf(output, "[%d/%d] %s\n", event.Index+1, event.Total, event.Preview)
		case batch.EventResult:
			record := event.Record
			if record.Result.Succeeded() {
				fmt.Fprintf(output, "  ok: %d chars, %d words (%s)\n", record.Result.Article.CharCount, record.Result.Article.WordCount, record.Duration.Round(100*time.Millisecond))
				return
			}
			fmt.Fprintf(output, "  failed: %s\n", singleLine(record.Result.Failure.Message))
		case batch.EventCompleted, batch.EventStopped:
			stats := event.Stats
			fmt.Fprintf(output, "%s: %d/%d processed, %d succeeded, %d failed, %d chars in %s\n",
				event.Kind, stats.Processed(), stats.Total, stats.Succeeded, stats.Failed, stats.TotalChars, stats.Elapsed.Round(time.Second))
		}
	}
}

// watchInterrupts turns the first interrupt into a cooperative stop and the
// second into cancellation of the in-flight request.
func watchInterrupts(signals <-chan os.Signal, done <-chan struct{}, stop func(), cancel context.CancelFunc, output io.Writer) {
	interrupts := 0
	for {
		select {
		case <-done:
			return
		case <-signals:
			interrupts++
			if interrupts == 1 {
				fmt.Fprintln(output, "stopping after the current topic; interrupt again to abort it")
				stop()
				continue
			}
			fmt.Fprintln(output, "aborting")
			cancel()
			return
		}
	}
}

func singleLine(message string) string {
	return strings.Join(strings.Fields(message), " ")
}

type lockedWriter struct {
	mu     sync.Mutex
	writer io.Writer
}

func (locked *lockedWriter) Write(data []byte) (int, error) {
	locked.mu.Lock()
	defer locked.mu.Unlock()
	return locked.writer.Write(data)
}
