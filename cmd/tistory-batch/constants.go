package tistorybatch

const (
	rootCommandUse   = "tistory-batch"
	rootCommandShort = "Generate Tistory blog posts in batches with an LLM"

	configFlagName  = "config"
	configFlagUsage = "Path to config.yaml (default: $TISTORY_BATCH_CONFIG, ./config.yaml, ~/.tistory-batch/config.yaml)"

	runCommandUse          = "run [TOPIC...]"
	runCommandShort        = "Generate one post per topic and export the results"
	topicsFileFlagName     = "topics-file"
	topicsFileFlagUsage    = "File with one topic per line (- reads standard input)"
	keywordsFlagName       = "keywords"
	keywordsFlagUsage      = "Comma separated keywords added to every prompt"
	categoryFlagName       = "category"
	toneFlagName           = "tone"
	modelFlagName          = "model"
	modelFlagUsage         = "Model identifier (default: generation.model)"
	limitFlagName          = "limit"
	limitFlagUsage         = "Maximum number of topics; non-positive or invalid values mean 100"
	delayFlagName          = "delay"
	delayFlagUsage         = "Pause between topics (default: batch.delay_ms)"
	exportFlagName         = "export"
	exportFlagUsage        = "Export FORMAT[=PATH]; repeatable. Formats: csv, txt, digest-txt, digest-html, posts"
	exportDirectoryFlag    = "export-dir"
	exportDirectoryUsage   = "Directory for exports written without an explicit path (default: export.directory)"
	metricsTextfileFlag    = "metrics-textfile"
	metricsTextfileUsage   = "Write Prometheus metrics to this file when the run ends"
	standardInputTopicFile = "-"

	modelsCommandUse   = "models"
	modelsCommandShort = "List the chat models available to the configured API key"

	keyCommandUse       = "key"
	keyCommandShort     = "Manage the stored API key"
	keySetCommandUse    = "set KEY"
	keySetCommandShort  = "Store the API key in the credentials file"
	keyShowCommandUse   = "show"
	keyShowCommandShort = "Show the masked API key and where it comes from"

	configCommandUse       = "config"
	configCommandShort     = "Inspect configuration"
	configShowCommandUse   = "show"
	configShowCommandShort = "Print the effective configuration as YAML"

	serveCommandUse   = "serve"
	serveCommandShort = "Serve the batch control API over HTTP"
	addrFlagName      = "addr"
	addrFlagUsage     = "Listen address (default: server.addr)"

	configurationLoaderInitializationErrorFormat = "initialize configuration loader: %w"
	configurationSourceResolutionErrorFormat     = "resolve configuration source: %w"
	rootConfigurationLoadErrorFormat             = "load root configuration %s: %w"
	loggerInitializationErrorFormat              = "initialize logger: %w"
	resolveAPIKeyErrorFormat                     = "resolve API key: %w"
	missingAPIKeyErrorFormat                     = "missing API key: set %s or run `tistory-batch key set`"
	readTopicsFileErrorFormat                    = "read topics from %s: %w"
	invalidExportTargetErrorFormat               = "invalid --export %q: %w"
	startBatchErrorFormat                        = "start batch: %w"
	exportErrorFormat                            = "export %s: %w"
	writeOutputErrorFormat                       = "write output: %w"
	allTopicsFailedErrorFormat                   = "all %d topics failed"
	writeMetricsErrorFormat                      = "write metrics: %w"
	saveAPIKeyErrorFormat                        = "save API key: %w"
	renderConfigurationErrorFormat               = "render configuration: %w"
	serveErrorFormat                             = "serve: %w"
)
