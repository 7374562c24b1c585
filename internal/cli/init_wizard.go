package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// errInitCancelled is returned when the user aborts the init wizard or
// declines its confirmation.
var errInitCancelled = errors.New("init cancelled by user")

// wizardWidth is the fixed form width of the init wizard.
const wizardWidth = 72

// initAnswers holds the values collected by the init wizard. Fields arrive
// pre-filled with the flag values or their defaults.
type initAnswers struct {
	Name      string
	ProjectID string
	StoreDir  string
}

// runInitWizard asks for the workspace name, then the default project ID and
// store directory, then confirmation. The project ID is suggested from the
// name unless one was already given.
func runInitWizard(a *initAnswers, templateName string) error {
	if err := runNamePage(&a.Name); err != nil {
		return mapWizardErr(err)
	}
	if a.ProjectID == "" {
		a.ProjectID = projectIDFromName(a.Name)
	}
	if err := runWorkspacePage(&a.ProjectID, &a.StoreDir); err != nil {
		return mapWizardErr(err)
	}

	confirmed := true
	if err := runConfirmPage(initSummary(*a, templateName), &confirmed); err != nil {
		return mapWizardErr(err)
	}
	if !confirmed {
		return errInitCancelled
	}
	return nil
}

func runNamePage(name *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Workspace name").
				Description("Written to pacer.toml as project.name").
				Value(name).
				Validate(validateWorkspaceName),
		),
	).
		WithTheme(huh.ThemeCharm()).
		WithWidth(wizardWidth).
		Run()
}

func runWorkspacePage(projectID, storeDir *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Default project ID").
				Description("Used by commands that are not given a project").
				Value(projectID).
				Validate(validateProjectID),
			huh.NewInput().
				Title("Store directory").
				Description("Where project documents are kept, relative to the workspace").
				Value(storeDir).
				Validate(validateStoreDir),
		),
	).
		WithTheme(huh.ThemeCharm()).
		WithWidth(wizardWidth).
		Run()
}

func runConfirmPage(summary string, confirmed *bool) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Create workspace?").
				Description(summary).
				Affirmative("Create").
				Negative("Cancel").
				Value(confirmed),
		),
	).
		WithTheme(huh.ThemeCharm()).
		WithWidth(wizardWidth).
		Run()
}

// initSummary describes the answers on the confirmation page.
func initSummary(a initAnswers, templateName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Template:         %s\n", templateName)
	fmt.Fprintf(&sb, "Workspace name:   %s\n", a.Name)
	fmt.Fprintf(&sb, "Default project:  %s\n", a.ProjectID)
	fmt.Fprintf(&sb, "Store directory:  %s\n", a.StoreDir)
	return sb.String()
}

// mapWizardErr converts huh's abort into errInitCancelled.
func mapWizardErr(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return errInitCancelled
	}
	return fmt.Errorf("init wizard: %w", err)
}

func validateWorkspaceName(s string) error {
	switch {
	case strings.TrimSpace(s) == "":
		return errors.New("must not be empty")
	case strings.Contains(s, "../") || strings.Contains(s, "..\\"):
		return errors.New("must not contain path traversal sequences")
	}
	return nil
}

// validateProjectID accepts lowercase letters, digits, '-' and '_'.
func validateProjectID(s string) error {
	if s == "" {
		return errors.New("must not be empty")
	}
	if projectIDFromName(s) != s {
		return fmt.Errorf("use lowercase letters, digits, '-' or '_' (for example %q)", projectIDFromName(s))
	}
	return nil
}

func validateStoreDir(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("must not be empty")
	}
	return nil
}
