package commands

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ctrl-q/ctrlq/errors"
	"github.com/ctrl-q/ctrlq/importer"
	"github.com/ctrl-q/ctrlq/logger"
	"github.com/ctrl-q/ctrlq/parse"
	"github.com/ctrl-q/ctrlq/resolve"
)

const (
	fileTypeExcel = "excel"
	fileTypeCSV   = "csv"
)

var (
	importFileType         string
	importFileName         string
	importSheetName        string
	importAppFile          string
	importAppSheetName     string
	importLimitCount       int
	importSleepAppUploadMs int
	importUpdateMode       string
	importDryRun           bool
)

// TaskImportCmd reads a source file and creates tasks/triggers from it
// (spec.md §6, two-phase import C6).
var TaskImportCmd = &cobra.Command{
	Use:   "task-import",
	Short: "Import tasks, triggers, and apps from a source file",
	Long: `Parse a delimited or spreadsheet source file into tasks, schema
triggers, and composite triggers, then create them in QSEoW (create-only;
--update-mode update is a non-goal and fails fast).`,
	RunE: runTaskImport,
}

func init() {
	f := TaskImportCmd.Flags()
	f.StringVar(&importFileType, "file-type", fileTypeExcel, "source file type: excel or csv")
	f.StringVar(&importFileName, "file-name", "", "path to the source file (required)")
	f.StringVar(&importSheetName, "sheet-name", "Tasks", "worksheet name holding task rows (excel only)")
	f.StringVar(&importAppFile, "import-app", "", "path to a source file of apps to upload before importing tasks")
	f.StringVar(&importAppSheetName, "import-app-sheet-name", "Apps", "worksheet name holding app rows (excel only)")
	f.IntVar(&importLimitCount, "limit-import-count", 0, "import only task groups whose Task counter is <= this value (0 = no limit)")
	f.IntVar(&importSleepAppUploadMs, "sleep-app-upload", 1000, "milliseconds to wait between app uploads")
	f.StringVar(&importUpdateMode, "update-mode", "create", `update mode; only "create" is legal`)
	f.BoolVar(&importDryRun, "dry-run", false, "parse and resolve but do not call the Repository")
}

func runTaskImport(cmd *cobra.Command, args []string) error {
	if importFileName == "" {
		return errors.New("--file-name is required")
	}
	if importUpdateMode != "create" {
		return errors.Newf("update-mode %q is not supported; only \"create\" is legal", importUpdateMode)
	}

	taskRows, err := readSource(importFileType, importFileName, importSheetName)
	if err != nil {
		return errors.Wrap(err, "reading source file")
	}
	taskResolver, err := parse.NewColumnResolver(taskRows[0], parse.ByName, nil)
	if err != nil {
		return errors.Wrap(err, "mapping source columns")
	}
	tasks, err := parse.ParseTasks(taskRows, taskResolver, importLimitCount)
	if err != nil {
		return errors.Wrap(err, "parsing tasks")
	}

	var apps []parse.AppRecord
	if importAppFile != "" {
		appRows, err := readSource(importFileType, importAppFile, importAppSheetName)
		if err != nil {
			return errors.Wrap(err, "reading app source file")
		}
		appResolver, err := parse.NewColumnResolver(appRows[0], parse.ByName, nil)
		if err != nil {
			return errors.Wrap(err, "mapping app source columns")
		}
		apps, err = parse.ParseApps(appRows, appResolver)
		if err != nil {
			return errors.Wrap(err, "parsing apps")
		}
	}

	ctx := cmd.Context()
	conn, err := connect()
	if err != nil {
		return err
	}

	knownTasks, err := loadGraph(ctx, conn.qr)
	if err != nil {
		return err
	}

	resolver := resolve.New(conn.qr, knownTasks, logger.ComponentLogger("resolve"))
	if err := resolver.Warm(ctx); err != nil {
		return errors.Wrap(err, "warming tag/custom-property caches")
	}

	im := importer.New(conn.qr, resolver, importer.Options{
		DryRun:           importDryRun,
		SleepAppUploadMs: importSleepAppUploadMs,
	}, logger.ComponentLogger("importer"))

	result, err := im.Run(ctx, &parse.Result{Tasks: tasks, Apps: apps})
	if err != nil {
		return errors.Wrap(err, "running import")
	}

	reportImportResult(result)
	if !result.Succeeded() {
		return errors.New("import completed with errors; see output above")
	}
	return nil
}

func readSource(fileType, path, sheetName string) ([][]string, error) {
	switch fileType {
	case fileTypeCSV:
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", path)
		}
		defer f.Close()
		return parse.ReadDelimited(f)
	case fileTypeExcel:
		return parse.ReadSpreadsheet(path, sheetName)
	default:
		return nil, errors.Newf("unknown --file-type %q; must be %q or %q", fileType, fileTypeExcel, fileTypeCSV)
	}
}

func reportImportResult(result *importer.Result) {
	for _, a := range result.Apps {
		if a.Err != nil {
			pterm.Error.Printf("app %d: FAILED: %v\n", a.AppCounter, a.Err)
			continue
		}
		pterm.Success.Printf("app %d: created %s\n", a.AppCounter, a.GUID)
	}
	for _, t := range result.Tasks {
		if t.Err != nil {
			pterm.Error.Printf("task %d (%s): FAILED: %v\n", t.TaskCounter, t.TaskID, t.Err)
			continue
		}
		pterm.Success.Printf("task %d (%s): created %s\n", t.TaskCounter, t.TaskID, t.GUID)
	}
	for _, e := range result.Events {
		if e.Err != nil {
			pterm.Error.Printf("composite event %d (task %d): FAILED: %v\n", e.EventCounter, e.TaskCounter, e.Err)
			continue
		}
		pterm.Success.Printf("composite event %d (task %d): created %s\n", e.EventCounter, e.TaskCounter, e.GUID)
	}
}
