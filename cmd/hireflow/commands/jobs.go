package commands

import (
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/hireflow/errors"
	"github.com/teranos/hireflow/internal/util"
	"github.com/teranos/hireflow/logger"
	"github.com/teranos/hireflow/sym"
	"github.com/teranos/hireflow/workflow"
)

// JobsCmd groups job post commands. Actions run through the workflow engine
// with the permissions of the actor given by --as and --role.
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: sym.SO + " Create job posts and apply workflow actions",
	Long: sym.SO + ` jobs - Work with job posts from the command line

Every action goes through the same engine, permission checks and audit log as
the API. --as and --role choose the acting identity (default: admin "cli").

Examples:
  hireflow jobs create --employer emp-1 --title "Backend engineer"
  hireflow jobs apply <id> submit_for_approval --as emp-1 --role employer
  hireflow jobs apply <id> reject --rejection-reason incomplete_information
  hireflow jobs apply <id> approve --publish-immediately
  hireflow jobs bulk expire <id> <id> ...
  hireflow jobs history <id> --format yaml
  hireflow jobs history <id> --verify
  hireflow jobs list --status active`,
}

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a draft job post",
	RunE:  runJobsCreate,
}

var jobsApplyCmd = &cobra.Command{
	Use:   "apply <id> <action>",
	Short: "Apply a workflow action to a job post",
	Args:  cobra.ExactArgs(2),
	RunE:  runJobsApply,
}

var jobsBulkCmd = &cobra.Command{
	Use:   "bulk <action> <id>...",
	Short: "Apply one action to many job posts (admin)",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runJobsBulk,
}

var jobsHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "Show the workflow history of a job post",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsHistory,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List job posts",
	RunE:  runJobsList,
}

var (
	jobsActorID string
	jobsRole    string
	jobsFormat  string

	createEmployer  string
	createTitle     string
	createPriority  string
	createPublishAt string
	createExpireAt  string

	applyNotes              string
	applyReason             string
	applyRejectionReason    string
	applyPublishImmediately bool
	applyPriority           string
	applyFeatured           bool
	applyUrgent             bool

	historyVerify bool

	listStatus   string
	listEmployer string
	listLimit    int
)

func init() {
	JobsCmd.PersistentFlags().StringVar(&jobsActorID, "as", "cli", "Actor id to act as")
	JobsCmd.PersistentFlags().StringVar(&jobsRole, "role", string(workflow.RoleAdmin), "Actor role: job_seeker, employer, admin, super_admin")
	JobsCmd.PersistentFlags().StringVar(&jobsFormat, "format", FormatTable, "Output format: table, json, yaml")

	jobsCreateCmd.Flags().StringVar(&createEmployer, "employer", "", "Owning employer id (defaults to --as for employers)")
	jobsCreateCmd.Flags().StringVar(&createTitle, "title", "", "Job title")
	jobsCreateCmd.Flags().StringVar(&createPriority, "priority", "", "Priority: low, normal, high, urgent")
	jobsCreateCmd.Flags().StringVar(&createPublishAt, "publish-at", "", "Scheduled publish date (RFC3339)")
	jobsCreateCmd.Flags().StringVar(&createExpireAt, "expire-at", "", "Expiry date (RFC3339)")

	for _, c := range []*cobra.Command{jobsApplyCmd, jobsBulkCmd} {
		c.Flags().StringVar(&applyNotes, "notes", "", "Free-text notes recorded in the audit log")
		c.Flags().StringVar(&applyReason, "reason", "", "Reason (required for flag)")
		c.Flags().StringVar(&applyRejectionReason, "rejection-reason", "", "Rejection reason (required for reject): "+rejectionReasonList())
		c.Flags().BoolVar(&applyPublishImmediately, "publish-immediately", false, "Approve straight to active")
		c.Flags().StringVar(&applyPriority, "priority", "", "Priority to set on publish")
		c.Flags().BoolVar(&applyFeatured, "featured", false, "Mark featured on publish")
		c.Flags().BoolVar(&applyUrgent, "urgent", false, "Mark urgent on publish")
	}

	jobsHistoryCmd.Flags().BoolVar(&historyVerify, "verify", false, "Replay the history and check it reproduces the stored status")

	jobsListCmd.Flags().StringVar(&listStatus, "status", "", "Only posts in this status")
	jobsListCmd.Flags().StringVar(&listEmployer, "employer", "", "Only posts of this employer")
	jobsListCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum posts to list (0 = all)")

	JobsCmd.AddCommand(jobsCreateCmd, jobsApplyCmd, jobsBulkCmd, jobsHistoryCmd, jobsListCmd)
}

func rejectionReasonList() string {
	reasons := workflow.RejectionReasons()
	names := make([]string, len(reasons))
	for i, r := range reasons {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

func cliActor() (workflow.Actor, error) {
	role, err := workflow.ParseRole(jobsRole)
	if err != nil {
		return workflow.Actor{}, err
	}
	if strings.TrimSpace(jobsActorID) == "" {
		return workflow.Actor{}, errors.New("--as must not be empty")
	}
	return workflow.Actor{ID: jobsActorID, Role: role}, nil
}

func parseDate(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid --%s", flag)
	}
	return util.Ptr(t.UTC()), nil
}

// payloadFromFlags builds the action payload; only flags the user set are carried
func payloadFromFlags(cmd *cobra.Command) workflow.Payload {
	p := workflow.Payload{
		Notes:              applyNotes,
		Reason:             applyReason,
		RejectionReason:    workflow.RejectionReason(applyRejectionReason),
		PublishImmediately: applyPublishImmediately,
		Priority:           workflow.Priority(applyPriority),
	}
	if cmd.Flags().Changed("featured") {
		p.IsFeatured = util.Ptr(applyFeatured)
	}
	if cmd.Flags().Changed("urgent") {
		p.IsUrgent = util.Ptr(applyUrgent)
	}
	return p
}

func runJobsCreate(cmd *cobra.Command, args []string) error {
	actor, err := cliActor()
	if err != nil {
		return err
	}
	employer := createEmployer
	if employer == "" && actor.Role == workflow.RoleEmployer {
		employer = actor.ID
	}
	if actor.Role == workflow.RoleEmployer && employer != actor.ID {
		return errors.New("employers may only create their own job posts")
	}
	if actor.Role == workflow.RoleJobSeeker {
		return errors.New("job seekers may not create job posts")
	}

	post := &workflow.JobPost{
		EmployerID: employer,
		Title:      createTitle,
		Priority:   workflow.Priority(createPriority),
	}
	if post.ScheduledPublishDate, err = parseDate("publish-at", createPublishAt); err != nil {
		return err
	}
	if post.ExpiryDate, err = parseDate("expire-at", createExpireAt); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Create(cmd.Context(), post); err != nil {
		return err
	}
	if jobsFormat != FormatTable {
		return writeStructured(cmd.OutOrStdout(), post, jobsFormat)
	}
	pterm.Success.Printf("Created draft %s for employer %s\n", post.ID, post.EmployerID)
	return nil
}

func runJobsApply(cmd *cobra.Command, args []string) error {
	actor, err := cliActor()
	if err != nil {
		return err
	}
	action, err := workflow.ParseAction(args[1])
	if err != nil {
		return err
	}

	b, err := openBackendFromConfig(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := b.engine.Apply(cmd.Context(), args[0], action, actor, payloadFromFlags(cmd))
	if err != nil {
		return describeWorkflowError(err)
	}
	if jobsFormat != FormatTable {
		return writeStructured(cmd.OutOrStdout(), res, jobsFormat)
	}
	pterm.Success.Printf("%s %s: %s %s %s\n", res.JobPostID, res.Action, res.From, sym.SO, res.To)
	return nil
}

func runJobsBulk(cmd *cobra.Command, args []string) error {
	actor, err := cliActor()
	if err != nil {
		return err
	}
	action, err := workflow.ParseAction(args[0])
	if err != nil {
		return err
	}

	b, err := openBackendFromConfig(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := b.engine.ApplyBulk(cmd.Context(), args[1:], action, actor, payloadFromFlags(cmd))
	if err != nil {
		return describeWorkflowError(err)
	}
	if jobsFormat != FormatTable {
		return writeStructured(cmd.OutOrStdout(), res, jobsFormat)
	}

	data := pterm.TableData{{"Job post", "Result", "From", "To", "Error"}}
	for _, it := range res.Items {
		result := "ok"
		if !it.Success {
			result = string(it.ErrorKind)
			if result == "" {
				result = "error"
			}
		}
		data = append(data, []string{it.JobPostID, result, string(it.From), string(it.To), it.Error})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	pterm.Info.Printf("%s: %d succeeded, %d failed of %d\n", res.Action, res.Succeeded, res.Failed, res.Total)
	return nil
}

func runJobsHistory(cmd *cobra.Command, args []string) error {
	actor, err := cliActor()
	if err != nil {
		return err
	}
	b, err := openBackendFromConfig(cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	entries, err := b.engine.History(cmd.Context(), args[0], actor)
	if err != nil {
		return describeWorkflowError(err)
	}
	if historyVerify {
		replayed, err := b.engine.VerifyHistory(cmd.Context(), args[0])
		if err != nil {
			return errors.WithHint(err, "the audit log does not reproduce the stored status")
		}
		if jobsFormat == FormatTable {
			pterm.Success.Printf("History of %s replays to %s (%d entries)\n", args[0], replayed, len(entries))
		}
	}
	if jobsFormat != FormatTable {
		return writeStructured(cmd.OutOrStdout(), entries, jobsFormat)
	}
	if len(entries) == 0 {
		pterm.Info.Println("No workflow history yet")
		return nil
	}

	data := pterm.TableData{{"Seq", "When", "Action", "Transition", "By", "Reason"}}
	for _, e := range entries {
		by := e.PerformedBy + " (" + string(e.ActorRole) + ")"
		if e.Automated {
			by = sym.Pulse + " " + by
		}
		data = append(data, []string{
			pterm.Sprint(e.Seq),
			e.CreatedAt.Format(time.RFC3339),
			string(e.Action),
			string(e.FromStatus) + " " + sym.SO + " " + string(e.ToStatus),
			by,
			e.Reason,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runJobsList(cmd *cobra.Command, args []string) error {
	f := workflow.ListFilter{EmployerID: listEmployer, Limit: listLimit}
	if listStatus != "" {
		st, err := workflow.ParseStatus(listStatus)
		if err != nil {
			return err
		}
		f.Status = st
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer closeStore()

	posts, err := store.List(cmd.Context(), f)
	if err != nil {
		return err
	}
	if jobsFormat != FormatTable {
		return writeStructured(cmd.OutOrStdout(), posts, jobsFormat)
	}

	data := pterm.TableData{{"ID", "Employer", "Title", "Status", "Priority", "Updated"}}
	for _, p := range posts {
		data = append(data, []string{
			p.ID, p.EmployerID, p.Title, string(p.Status), string(p.Priority),
			p.UpdatedAt.Format(time.RFC3339),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func openBackendFromConfig(cmd *cobra.Command) (*backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openBackend(cmd.Context(), cfg)
}

// describeWorkflowError adds the user-facing message and, for invalid
// transitions, what the actor could do instead
func describeWorkflowError(err error) error {
	var we *workflow.Error
	if !errors.As(err, &we) {
		return err
	}
	if we.Kind == workflow.KindInvalidTransition {
		allowed := make([]string, 0, len(we.AllowedActions))
		for _, a := range we.AllowedActions {
			allowed = append(allowed, string(a))
		}
		hint := "no actions are available"
		if len(allowed) > 0 {
			hint = "available: " + strings.Join(allowed, ", ")
		}
		return errors.WithHint(err, we.UserMessage()+" ("+hint+")")
	}
	return errors.WithHint(err, we.UserMessage())
}
