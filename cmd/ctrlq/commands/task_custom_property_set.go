package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/ctrl-q/ctrlq/errors"
	"github.com/ctrl-q/ctrlq/logger"
	"github.com/ctrl-q/ctrlq/qrs"
	"github.com/ctrl-q/ctrlq/resolve"
	"github.com/ctrl-q/ctrlq/taskgraph"
)

const (
	modeAppend  = "append"
	modeReplace = "replace"
)

var (
	propSetTaskIDs   []string
	propSetTaskTags  []string
	propSetPropName  string
	propSetPropValue string
	propSetMode      string
)

// TaskCustomPropertySetCmd sets a custom property on existing tasks
// (spec.md §6). Tags are used only to select tasks; they are not changed.
var TaskCustomPropertySetCmd = &cobra.Command{
	Use:   "task-custom-property-set",
	Short: "Set a custom property on existing tasks",
	Long: `Apply a custom property name=value pair to every task matching
the given --task-id and/or --task-tag filters (union). Any existing value
of that property is overwritten. In append mode the task's other custom
property values are kept; in replace mode they are dropped.`,
	RunE: runTaskCustomPropertySet,
}

func init() {
	f := TaskCustomPropertySetCmd.Flags()
	f.StringSliceVar(&propSetTaskIDs, "task-id", nil, "restrict to these task GUIDs (repeatable)")
	f.StringSliceVar(&propSetTaskTags, "task-tag", nil, "restrict to tasks carrying any of these tags (repeatable)")
	f.StringVar(&propSetPropName, "custom-property-name", "", "custom property name (required)")
	f.StringVar(&propSetPropValue, "custom-property-value", "", "custom property value (required)")
	f.StringVar(&propSetMode, "mode", modeAppend, "append (keep the task's other custom property values) or replace (drop them)")
}

func runTaskCustomPropertySet(cmd *cobra.Command, args []string) error {
	if propSetPropName == "" || propSetPropValue == "" {
		return errors.New("--custom-property-name and --custom-property-value are required")
	}
	if propSetMode != modeAppend && propSetMode != modeReplace {
		return errors.Newf("--mode must be %q or %q, got %q", modeAppend, modeReplace, propSetMode)
	}
	if len(propSetTaskIDs) == 0 && len(propSetTaskTags) == 0 {
		return errors.New("at least one of --task-id or --task-tag is required")
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

	ids, err := matchingTaskIDs(graph, propSetTaskIDs, propSetTaskTags)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		pterm.Warning.Println("no tasks matched the given filters")
		return nil
	}

	resolver := resolve.New(conn.qr, graph, logger.ComponentLogger("resolve"))
	if err := resolver.Warm(ctx); err != nil {
		return errors.Wrap(err, "warming tag/custom-property caches")
	}

	log := logger.ComponentLogger("task-custom-property-set")
	var failures int
	for _, id := range ids {
		task, ok := graph.Task(id)
		if !ok {
			continue
		}
		values := mergedPropertyValues(task.CustomPropertyValues, propSetPropName, propSetPropValue, propSetMode)

		resolved := make([]qrs.CustomPropertyValue, 0, len(values))
		for name, value := range values {
			v, err := resolver.ResolveCustomProperty(name, value)
			if err != nil {
				return errors.Wrapf(err, "resolving custom property %q for task %q", name, id)
			}
			resolved = append(resolved, v)
		}

		kind := qrs.TaskKind(task.Kind)
		if err := conn.qr.UpdateTaskCustomProperties(ctx, id, kind, resolved); err != nil {
			log.Errorw("failed to update task", "task", id, "error", err)
			pterm.Error.Printf("failed to update %s (%s): %v\n", task.Name, id, err)
			failures++
			continue
		}
		pterm.Success.Printf("updated %s (%s)\n", task.Name, id)
	}

	if failures > 0 {
		return errors.Newf("%d of %d tasks failed to update", failures, len(ids))
	}
	return nil
}

// mergedPropertyValues computes the custom-property set a task should end
// up with: existing values are kept, propName is set to propValue, and in
// "replace" mode every other existing value is dropped.
func mergedPropertyValues(existing map[string]string, propName, propValue, mode string) map[string]string {
	out := map[string]string{}
	if mode == modeAppend {
		for k, v := range existing {
			out[k] = v
		}
	}
	out[propName] = propValue
	return out
}

// matchingTaskIDs returns the union of tasks named by id or carrying any
// of the given tags.
func matchingTaskIDs(g *taskgraph.Graph, ids, tags []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, id := range ids {
		if _, ok := g.Task(id); ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if len(tags) > 0 {
		var all []taskgraph.Task
		g.Tasks(func(t taskgraph.Task) bool {
			all = append(all, t)
			return true
		})
		for _, t := range all {
			if seen[t.ID] {
				continue
			}
			if hasAnyTag(t.Tags, tags) {
				seen[t.ID] = true
				out = append(out, t.ID)
			}
		}
	}
	return out, nil
}

func hasAnyTag(taskTags, want []string) bool {
	for _, w := range want {
		for _, t := range taskTags {
			if t == w {
				return true
			}
		}
	}
	return false
}
