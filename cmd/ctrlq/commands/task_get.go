package commands

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/ctrl-q/ctrlq/analyzer"
	"github.com/ctrl-q/ctrlq/errors"
	"github.com/ctrl-q/ctrlq/qrs"
	"github.com/ctrl-q/ctrlq/taskgraph"
)

const (
	outputFormatTree  = "tree"
	outputFormatTable = "table"

	outputDestScreen = "screen"
	outputDestFile   = "file"

	fileFormatExcel = "excel"
	fileFormatCSV   = "csv"
	fileFormatJSON  = "json"
)

var (
	getOutputFormat        string
	getOutputDest          string
	getOutputFileFormat    string
	getOutputFile          string
	getOutputFileOverwrite bool
	getTaskIDs             []string
	getTaskTags            []string
	getTableDetails        []string
	getTreeDetails         []string
)

// TaskGetCmd reads and renders the task graph (spec.md §6).
var TaskGetCmd = &cobra.Command{
	Use:   "task-get",
	Short: "Read the task graph as a tree or a table",
	Long: `Load the task graph from the Repository and render it either as
an indented dependency tree (--output-format tree) or as a flat table
(--output-format table), to the screen or to a file.`,
	RunE: runTaskGet,
}

func init() {
	f := TaskGetCmd.Flags()
	f.StringVar(&getOutputFormat, "output-format", outputFormatTree, "tree or table")
	f.StringVar(&getOutputDest, "output-dest", outputDestScreen, "screen or file")
	f.StringVar(&getOutputFileFormat, "output-file-format", fileFormatCSV, "excel, csv, or json (when --output-dest file)")
	f.StringVar(&getOutputFile, "output-file", "", "output file path (when --output-dest file)")
	f.BoolVar(&getOutputFileOverwrite, "output-file-overwrite", false, "overwrite the output file without prompting")
	f.StringSliceVar(&getTaskIDs, "task-id", nil, "restrict table output to these task GUIDs (repeatable)")
	f.StringSliceVar(&getTaskTags, "task-tag", nil, "restrict table output to tasks carrying any of these tags (repeatable)")
	f.StringSliceVar(&getTableDetails, "table-details", []string{"common"}, "column blocks: common, lastexecution, tag, customproperty, schematrigger, compositetrigger")
	f.StringSliceVar(&getTreeDetails, "tree-details", nil, "per-node decorations: status")
}

func runTaskGet(cmd *cobra.Command, args []string) error {
	if getOutputFormat != outputFormatTree && getOutputFormat != outputFormatTable {
		return errors.Newf("--output-format must be %q or %q", outputFormatTree, outputFormatTable)
	}
	if getOutputDest != outputDestScreen && getOutputDest != outputDestFile {
		return errors.Newf("--output-dest must be %q or %q", outputDestScreen, outputDestFile)
	}

	ctx := cmd.Context()
	conn, err := connect()
	if err != nil {
		return err
	}

	graph, err := loadGraph(ctx, conn.qr)
	if err != nil {
		return err
	}

	if getOutputFormat == outputFormatTree {
		return renderTreeOutput(cmd, conn.qr, graph)
	}
	return renderTableOutput(cmd, conn.qr, graph)
}

func renderTreeOutput(cmd *cobra.Command, qr *qrs.Client, g *taskgraph.Graph) error {
	var allIDs []string
	g.Tasks(func(t taskgraph.Task) bool {
		allIDs = append(allIDs, t.ID)
		return true
	})
	roots, err := g.GetRootNodesFromFilter(taskgraph.FilterSpec{TaskIDs: allIDs})
	if err != nil {
		return errors.Wrap(err, "finding root tasks")
	}

	forest := analyzer.RenderTree(g, roots, -1)

	showStatus := containsString(getTreeDetails, "status")

	var b strings.Builder
	for _, root := range forest {
		if err := writeTreeNode(cmd.Context(), qr, &b, root, 0, showStatus); err != nil {
			return err
		}
	}

	return writeOutput(cmd, []byte(b.String()))
}

func writeTreeNode(ctx context.Context, qr *qrs.Client, b *strings.Builder, n *analyzer.TreeNode, depth int, showStatus bool) error {
	indent := strings.Repeat("  ", depth)
	label := n.Task.Name
	if label == "" {
		label = n.TaskID
	}
	if n.IsCycle {
		label += " (cycle)"
	}
	if showStatus && n.TaskID != "" {
		status, _, err := lastExecutionFields(ctx, qr, n.TaskID)
		if err != nil {
			return err
		}
		if status != "" {
			label += " [" + status + "]"
		}
	}
	fmt.Fprintf(b, "%s- %s\n", indent, label)

	for _, child := range n.Children {
		if err := writeTreeNode(ctx, qr, b, child, depth+1, showStatus); err != nil {
			return err
		}
	}
	return nil
}

func renderTableOutput(cmd *cobra.Command, qr *qrs.Client, g *taskgraph.Graph) error {
	ids, err := matchingTaskIDs(g, getTaskIDs, getTaskTags)
	if err != nil {
		return err
	}
	if len(getTaskIDs) == 0 && len(getTaskTags) == 0 {
		g.Tasks(func(t taskgraph.Task) bool {
			ids = append(ids, t.ID)
			return true
		})
	}

	header, rows, err := buildTableRows(cmd.Context(), qr, g, ids, getTableDetails)
	if err != nil {
		return err
	}

	switch getOutputDest {
	case outputDestScreen:
		return writeTableScreen(cmd, header, rows)
	default:
		return writeTableFile(header, rows)
	}
}

func buildTableRows(ctx context.Context, qr *qrs.Client, g *taskgraph.Graph, ids, details []string) ([]string, [][]string, error) {
	wantLastExecution := containsString(details, "lastexecution")
	wantTag := containsString(details, "tag")
	wantCustomProperty := containsString(details, "customproperty")
	wantSchemaTrigger := containsString(details, "schematrigger")
	wantCompositeTrigger := containsString(details, "compositetrigger")

	header := []string{"Task id", "Task name", "Task type", "Task enabled"}
	if wantTag {
		header = append(header, "Tags")
	}
	if wantCustomProperty {
		header = append(header, "Custom properties")
	}
	if wantSchemaTrigger {
		header = append(header, "Schema triggers")
	}
	if wantCompositeTrigger {
		header = append(header, "Composite rule count")
	}
	if wantLastExecution {
		header = append(header, "Last execution status", "Last execution start")
	}

	var rows [][]string
	for _, id := range ids {
		t, ok := g.Task(id)
		if !ok {
			continue
		}
		row := []string{t.ID, t.Name, taskKindLabel(t.Kind), bool01Label(t.Enabled)}
		if wantTag {
			row = append(row, strings.Join(t.Tags, ","))
		}
		if wantCustomProperty {
			row = append(row, joinCustomPropertiesLabel(t.CustomPropertyValues))
		}
		if wantSchemaTrigger {
			row = append(row, fmt.Sprintf("%d", len(t.ScheduleTriggers)))
		}
		if wantCompositeTrigger {
			row = append(row, fmt.Sprintf("%d", len(t.CompositeEventIDs)))
		}
		if wantLastExecution {
			status, start, err := lastExecutionFields(ctx, qr, t.ID)
			if err != nil {
				return nil, nil, err
			}
			row = append(row, status, start)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func lastExecutionFields(ctx context.Context, qr *qrs.Client, taskID string) (status string, start string, err error) {
	result, err := qr.GetLastExecutionResult(ctx, taskID)
	if err != nil {
		return "", "", errors.Wrapf(err, "fetching last execution for task %s", taskID)
	}
	if result == nil {
		return "", "", nil
	}
	return fmt.Sprintf("%d", result.Status), result.StartTime, nil
}

func taskKindLabel(k taskgraph.TaskKind) string {
	if k == taskgraph.ExternalProgram {
		return "External program"
	}
	return "Reload"
}

func bool01Label(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func joinCustomPropertiesLabel(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, 0, len(values))
	for k, v := range values {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func writeTableScreen(cmd *cobra.Command, header []string, rows [][]string) error {
	w := bufio.NewWriter(cmd.OutOrStdout())
	defer w.Flush()

	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return nil
}

func writeTableFile(header []string, rows [][]string) error {
	path := getOutputFile
	if path == "" {
		path = "ctrlq-tasks." + defaultExtension(getOutputFileFormat)
	}
	if !getOutputFileOverwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.Newf("output file %s already exists; pass --output-file-overwrite to replace it", path)
		}
	}

	var err error
	switch getOutputFileFormat {
	case fileFormatCSV:
		err = writeCSVFile(path, header, rows)
	case fileFormatJSON:
		err = writeJSONFile(path, header, rows)
	case fileFormatExcel:
		err = writeExcelFile(path, header, rows)
	default:
		return errors.Newf("unknown --output-file-format %q", getOutputFileFormat)
	}
	if err != nil {
		return err
	}
	pterm.Success.Printf("wrote %d rows to %s\n", len(rows), path)
	return nil
}

func defaultExtension(format string) string {
	switch format {
	case fileFormatExcel:
		return "xlsx"
	case fileFormatJSON:
		return "json"
	default:
		return "csv"
	}
}

func writeCSVFile(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSONFile(path string, header []string, rows [][]string) error {
	records := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(row) {
				rec[h] = row[i]
			}
		}
		records = append(records, rec)
	}

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling JSON")
	}
	return errors.Wrap(os.WriteFile(path, out, 0o644), "writing JSON file")
}

func writeExcelFile(path string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	const sheet = "Tasks"
	f.NewSheet(sheet)
	f.DeleteSheet("Sheet1")

	for col, h := range header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for r, row := range rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	return errors.Wrapf(f.SaveAs(path), "saving %s", path)
}

func writeOutput(cmd *cobra.Command, data []byte) error {
	if getOutputDest == outputDestScreen {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	path := getOutputFile
	if path == "" {
		path = "ctrlq-tree.txt"
	}
	if !getOutputFileOverwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.Newf("output file %s already exists; pass --output-file-overwrite to replace it", path)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "writing output file")
	}
	pterm.Success.Printf("wrote tree to %s\n", path)
	return nil
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
