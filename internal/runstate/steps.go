package runstate

// Step names, in wizard order.
const (
	StepImport    = "import"
	StepConfigure = "configure"
	StepCollect   = "collect"
	StepExtract   = "extract"
	StepFilter    = "filter"
	StepAnalyze   = "analyze"
	StepVerify    = "verify"
	StepExport    = "export"
)

// Step is one wizard step with its recomputed validity flag.
type Step struct {
	Name  string `json:"name"`
	Valid bool   `json:"valid"`
}

func defaultSteps() []Step {
	return []Step{
		{Name: StepImport},
		{Name: StepConfigure},
		{Name: StepCollect},
		{Name: StepExtract},
		{Name: StepFilter},
		{Name: StepAnalyze},
		{Name: StepVerify},
		{Name: StepExport},
	}
}

// StepNames returns the ordered step names.
func StepNames() []string {
	steps := defaultSteps()
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}
