package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/hylla/metricops/internal/adapters/server/common"
	"github.com/hylla/metricops/internal/app"
	"github.com/hylla/metricops/internal/domain"
)

// outputFormat selects how command results are written to stdout.
type outputFormat string

const (
	outputText outputFormat = "text"
	outputJSON outputFormat = "json"
	outputYAML outputFormat = "yaml"
)

// descriptionWrap is the word-wrap width for rendered markdown descriptions.
const descriptionWrap = 80

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"})
	labelStyle  = lipgloss.NewStyle().Bold(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"})
)

func parseOutputFormat(raw string) (outputFormat, error) {
	switch format := outputFormat(strings.ToLower(strings.TrimSpace(raw))); format {
	case "", outputText:
		return outputText, nil
	case outputJSON, outputYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid --output %q: want text, json, or yaml", raw)
	}
}

// writeResult encodes payload as json/yaml, or calls text for the text format.
func writeResult(w io.Writer, format outputFormat, payload any, text func(io.Writer) error) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	case outputYAML:
		return writeYAML(w, payload)
	default:
		return text(w)
	}
}

// writeYAML round-trips through JSON so yaml keys match the json field names.
func writeYAML(w io.Writer, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode yaml payload: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("encode yaml payload: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Render()
}

// renderMarkdown renders a description for the terminal, falling back to raw text.
func renderMarkdown(markdown string) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(descriptionWrap),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

func writeBoards(w io.Writer, boards []domain.BoardDefinition) error {
	rows := make([][]string, 0, len(boards))
	for _, board := range boards {
		gates := make([]string, 0, len(board.Gates))
		for _, stage := range board.Stages {
			if gate, ok := board.Gates[stage]; ok {
				gates = append(gates, fmt.Sprintf("%s: %s", stage, gate))
			}
		}
		rows = append(rows, []string{string(board.Board), strings.Join(board.Stages, " > "), strings.Join(gates, ", ")})
	}
	_, err := fmt.Fprintln(w, renderTable([]string{"BOARD", "STAGES", "GATES"}, rows))
	return err
}

func writeWorkItems(w io.Writer, items []domain.WorkItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no work items")
		return err
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			string(item.Board),
			item.Stage,
			string(item.Status),
			string(item.Priority),
			item.OwnerUserID,
			strconv.Itoa(item.BlockerCount),
			yesNo(item.NeedsApproval),
			item.Title,
		})
	}
	_, err := fmt.Fprintln(w, renderTable(
		[]string{"ID", "BOARD", "STAGE", "STATUS", "PRI", "OWNER", "BLOCKERS", "APPROVAL", "TITLE"},
		rows,
	))
	return err
}

// writeWorkItemLine prints the one-line summary used after mutations.
func writeWorkItemLine(w io.Writer, item domain.WorkItem) error {
	_, err := fmt.Fprintf(w, "%s  %s  [%s / %s]  blockers=%d needs_approval=%t  %s\n",
		item.ID, item.Board, item.Stage, item.Status, item.BlockerCount, item.NeedsApproval, item.Title)
	return err
}

func writeWorkDetail(w io.Writer, detail app.WorkDetail) error {
	item := detail.WorkItem
	var b strings.Builder
	b.WriteString(titleStyle.Render(item.Title))
	b.WriteString("\n")
	fields := [][2]string{
		{"id", item.ID},
		{"board", string(item.Board)},
		{"type", item.Type},
		{"stage", item.Stage},
		{"status", string(item.Status)},
		{"priority", string(item.Priority)},
		{"business area", item.BusinessArea},
		{"owner", item.OwnerUserID},
		{"requester", item.RequesterUserID},
		{"due", formatOptionalTime(item.DueAt)},
		{"blockers", strconv.Itoa(item.BlockerCount)},
		{"needs approval", yesNo(item.NeedsApproval)},
		{"updated", formatTime(item.UpdatedAt)},
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(field[0]+":"), field[1])
	}
	if description := renderMarkdown(item.Description); description != "" {
		b.WriteString("\n")
		b.WriteString(description)
		b.WriteString("\n")
	}
	if len(detail.Dependencies) > 0 {
		rows := make([][]string, 0, len(detail.Dependencies))
		for _, edge := range detail.Dependencies {
			rows = append(rows, []string{edge.ID, edge.WorkItemID, edge.DependsOnID, string(edge.Type), yesNo(edge.Deleted)})
		}
		b.WriteString("\nDependencies\n")
		b.WriteString(renderTable([]string{"ID", "FROM", "DEPENDS ON", "TYPE", "DELETED"}, rows))
		b.WriteString("\n")
	}
	if len(detail.Approvals) > 0 {
		b.WriteString("\nApprovals\n")
		b.WriteString(approvalsTable(detail.Approvals))
		b.WriteString("\n")
	}
	if len(detail.Artifacts) > 0 {
		rows := make([][]string, 0, len(detail.Artifacts))
		for _, artifact := range detail.Artifacts {
			rows = append(rows, []string{string(artifact.Kind), artifact.Title, artifact.URL})
		}
		b.WriteString("\nArtifacts\n")
		b.WriteString(renderTable([]string{"KIND", "TITLE", "URL"}, rows))
		b.WriteString("\n")
	}
	if len(detail.Comments) > 0 {
		b.WriteString("\nComments\n")
		for _, comment := range detail.Comments {
			fmt.Fprintf(&b, "%s %s: %s\n", formatTime(comment.CreatedAt), comment.UserID, comment.Body)
		}
	}
	if len(detail.Events) > 0 {
		b.WriteString("\nEvents\n")
		b.WriteString(eventsTable(detail.Events))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeHistory(w io.Writer, versions []domain.WorkItem) error {
	rows := make([][]string, 0, len(versions))
	for _, version := range versions {
		rows = append(rows, []string{
			strconv.FormatInt(version.Seq, 10),
			version.Stage,
			string(version.Status),
			version.OwnerUserID,
			strconv.Itoa(version.BlockerCount),
			yesNo(version.NeedsApproval),
			formatTime(version.UpdatedAt),
		})
	}
	_, err := fmt.Fprintln(w, renderTable(
		[]string{"SEQ", "STAGE", "STATUS", "OWNER", "BLOCKERS", "APPROVAL", "UPDATED"},
		rows,
	))
	return err
}

func writeEvents(w io.Writer, events []domain.Event) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "no events")
		return err
	}
	_, err := fmt.Fprintln(w, eventsTable(events))
	return err
}

func eventsTable(events []domain.Event) string {
	rows := make([][]string, 0, len(events))
	for _, event := range events {
		pairs := make([]string, 0, len(event.Payload))
		for _, kv := range event.Payload {
			pairs = append(pairs, kv.Key+"="+kv.Value)
		}
		rows = append(rows, []string{
			formatTime(event.CreatedAt),
			string(event.Type),
			event.ActorID,
			strings.Join(pairs, " "),
		})
	}
	return renderTable([]string{"AT", "EVENT", "ACTOR", "PAYLOAD"}, rows)
}

func approvalsTable(approvals []domain.Approval) string {
	rows := make([][]string, 0, len(approvals))
	for _, approval := range approvals {
		rows = append(rows, []string{
			approval.ID,
			string(approval.Gate),
			approval.RequiredFromUserID,
			string(approval.Status),
			approval.DecisionNote,
		})
	}
	return renderTable([]string{"ID", "GATE", "FROM", "STATUS", "NOTE"}, rows)
}

func writeDependencyResult(w io.Writer, result common.DependencyResult) error {
	edge := result.Dependency
	if _, err := fmt.Fprintf(w, "dependency %s: %s %s %s\n", edge.ID, edge.WorkItemID, edge.Type, edge.DependsOnID); err != nil {
		return err
	}
	return writeWorkItemLine(w, result.WorkItem)
}

func writeApprovalResult(w io.Writer, result common.ApprovalResult) error {
	approval := result.Approval
	if _, err := fmt.Fprintf(w, "approval %s: %s from %s is %s\n", approval.ID, approval.Gate, approval.RequiredFromUserID, approval.Status); err != nil {
		return err
	}
	return writeWorkItemLine(w, result.WorkItem)
}

func writeSummary(w io.Writer, summary app.DailySummary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("generated:"), formatTime(summary.GeneratedAt))

	countRows := make([][]string, 0, len(summary.Counts))
	for _, count := range summary.Counts {
		countRows = append(countRows, []string{string(count.Board), count.Stage, string(count.Status), strconv.Itoa(count.Count)})
	}
	b.WriteString(renderTable([]string{"BOARD", "STAGE", "STATUS", "COUNT"}, countRows))
	b.WriteString("\n")

	if len(summary.PendingApprovals) > 0 {
		rows := make([][]string, 0, len(summary.PendingApprovals))
		for _, pending := range summary.PendingApprovals {
			rows = append(rows, []string{pending.RequiredFromUserID, strconv.Itoa(pending.Count)})
		}
		b.WriteString("\nPending approvals\n")
		b.WriteString(renderTable([]string{"APPROVER", "PENDING"}, rows))
		b.WriteString("\n")
	}
	if len(summary.TopBlocked) > 0 {
		rows := make([][]string, 0, len(summary.TopBlocked))
		for _, item := range summary.TopBlocked {
			rows = append(rows, []string{item.ID, string(item.Board), item.Stage, strconv.Itoa(item.BlockerCount), item.Title})
		}
		b.WriteString("\nMost blocked\n")
		b.WriteString(renderTable([]string{"ID", "BOARD", "STAGE", "BLOCKERS", "TITLE"}, rows))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// describeError prefixes workflow failures with their class name.
func describeError(err error) string {
	message := common.Message(err)
	if class := common.ErrorClass(err); class != "" {
		return class + ": " + message
	}
	return message
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

func formatOptionalTime(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return formatTime(*ts)
}
