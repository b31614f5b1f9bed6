// cmd/tools/registry-check/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"petcare-workers/internal/common/validation"
	"petcare-workers/pkg/registry"
)

// implemented lists the task types the worker manager registers.
var implemented = map[string]bool{
	"discover-places":           true,
	"find-pet-matches":          true,
	"calculate-pet-match-score": true,
}

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validatePath := validateCmd.String("path", "configs/activity-registry.json", "Path to registry file")

	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	listPath := listCmd.String("path", "configs/activity-registry.json", "Path to registry file")

	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	checkPath := checkCmd.String("path", "configs/activity-registry.json", "Path to registry file")
	checkTask := checkCmd.String("task", "", "Task type whose input schema is applied")
	checkFile := checkCmd.String("file", "", "JSON file holding job variables")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		_ = validateCmd.Parse(os.Args[2:])
		reg, err := loadAndValidate(*validatePath)
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))

	case "list":
		_ = listCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*listPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		for _, a := range reg.Activities {
			fmt.Printf("%-28s %-10s %-12s retries=%d timeout=%s\n", a.TaskType, a.Category, a.ImplementationStatus, a.Retries, a.Timeout)
		}

	case "check":
		_ = checkCmd.Parse(os.Args[2:])
		if *checkTask == "" || *checkFile == "" {
			fmt.Println("Error: task and file are required for check.")
			checkCmd.Usage()
			os.Exit(1)
		}
		msgs, err := checkVariables(*checkPath, *checkTask, *checkFile)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if len(msgs) > 0 {
			fmt.Printf("Variables rejected by %s schema:\n  %s\n", *checkTask, strings.Join(msgs, "\n  "))
			os.Exit(2)
		}
		fmt.Printf("Variables accepted by %s schema.\n", *checkTask)

	case "help":
		fallthrough
	default:
		help()
	}
}

// loadAndValidate parses the registry, checks required fields and compiles
// every input schema.
func loadAndValidate(path string) (*registry.ActivityRegistry, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	if len(reg.Activities) == 0 {
		return nil, errors.New("registry contains no activities")
	}

	ids := make(map[string]bool)
	for _, activity := range reg.Activities {
		if activity.ID == "" {
			return nil, errors.New("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return nil, fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			return nil, fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.Category == "" {
			return nil, fmt.Errorf("activity %s missing required field: Category", activity.ID)
		}
		if len(activity.InputSchema) == 0 {
			return nil, fmt.Errorf("activity %s has no inputSchema", activity.ID)
		}
	}

	if _, err := validation.NewValidator(reg.InputSchemas()); err != nil {
		return nil, err
	}

	var missing []string
	for taskType := range implemented {
		if _, ok := reg.Find(taskType); !ok {
			missing = append(missing, taskType)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("no activity registered for worker task types: %s", strings.Join(missing, ", "))
	}
	return reg, nil
}

func checkVariables(path, taskType, file string) ([]string, error) {
	reg, err := loadAndValidate(path)
	if err != nil {
		return nil, err
	}
	if _, ok := reg.Find(taskType); !ok {
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}

	doc, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read variables: %w", err)
	}

	v, err := validation.NewValidator(reg.InputSchemas())
	if err != nil {
		return nil, err
	}
	result, err := v.Validate(taskType, doc)
	if err != nil {
		return nil, err
	}
	return result.GetErrorMessages(), nil
}

func help() {
	fmt.Print(`
Usage: registry-check <command> [flags]

Commands:
  validate  Validate the registry file and compile its schemas
  list      List registered activities
  check     Validate a job variables file against an activity input schema
  help      Show this help message

Examples:
  registry-check validate -path configs/activity-registry.json
  registry-check check -task discover-places -file variables.json

Use 'registry-check <command> -h' for more information about a command.
` + "\n")
}
