package graph

// WorkflowBuilder accumulates executors and edge groups and produces a
// validated Workflow, mirroring the teacher's fluent builder idiom (spec.md
// §4.7).
type WorkflowBuilder struct {
	executors        map[string]Executor
	order            []string
	groups           []EdgeGroup
	startExecutorID  string
	maxIterations    int
	checkpointStore  CheckpointStorage
	requestInfo      *RequestInfoExecutor
	workflowID       string
	deferredErr      error
}

// NewWorkflowBuilder constructs an empty builder. maxIterations defaults to
// 100 if never overridden via WithMaxIterations.
func NewWorkflowBuilder(workflowID string) *WorkflowBuilder {
	return &WorkflowBuilder{
		executors:     map[string]Executor{},
		workflowID:    workflowID,
		maxIterations: 100,
	}
}

// AddExecutor registers ex under its own ID(). The first executor added
// becomes the start executor unless SetStartExecutor overrides it.
func (b *WorkflowBuilder) AddExecutor(ex Executor) *WorkflowBuilder {
	if _, exists := b.executors[ex.ID()]; !exists {
		b.order = append(b.order, ex.ID())
	}
	b.executors[ex.ID()] = ex
	if b.startExecutorID == "" {
		b.startExecutorID = ex.ID()
	}
	return b
}

// WithRequestInfo registers the workflow's single RequestInfoExecutor.
// Optional: a workflow that never suspends need not call this.
func (b *WorkflowBuilder) WithRequestInfo(ri *RequestInfoExecutor) *WorkflowBuilder {
	b.requestInfo = ri
	return b.AddExecutor(ri)
}

// SetStartExecutor designates the executor that receives a run's initial
// message.
func (b *WorkflowBuilder) SetStartExecutor(id string) *WorkflowBuilder {
	b.startExecutorID = id
	return b
}

// AddEdge adds a Single edge group from sourceID to targetID with an
// optional gate.
func (b *WorkflowBuilder) AddEdge(sourceID, targetID string, gate Predicate) *WorkflowBuilder {
	b.groups = append(b.groups, NewSingleEdgeGroup(sourceID, targetID, gate))
	return b
}

// AddFanOutEdge adds a FanOut edge group. Build fails with a ValidationError
// if targetIDs has fewer than two entries.
func (b *WorkflowBuilder) AddFanOutEdge(sourceID string, targetIDs []string, selector func(payload any, targetIDs []string) ([]string, error)) *WorkflowBuilder {
	g, err := NewFanOutEdgeGroup(sourceID, targetIDs, selector)
	if err != nil {
		b.deferredErr = err
		return b
	}
	b.groups = append(b.groups, g)
	return b
}

// AddSwitchCaseEdge adds a SwitchCase edge group.
func (b *WorkflowBuilder) AddSwitchCaseEdge(sourceID string, cases []SwitchCase, defaultTargetID string) *WorkflowBuilder {
	g, err := NewSwitchCaseEdgeGroup(sourceID, cases, defaultTargetID)
	if err != nil {
		b.deferredErr = err
		return b
	}
	b.groups = append(b.groups, g)
	return b
}

// AddFanInEdge adds a FanIn edge group.
func (b *WorkflowBuilder) AddFanInEdge(sourceIDs []string, targetID string) *WorkflowBuilder {
	g, err := NewFanInEdgeGroup(sourceIDs, targetID)
	if err != nil {
		b.deferredErr = err
		return b
	}
	b.groups = append(b.groups, g)
	return b
}

// WithMaxIterations overrides the superstep cap.
func (b *WorkflowBuilder) WithMaxIterations(n int) *WorkflowBuilder {
	b.maxIterations = n
	return b
}

// WithCheckpointStorage attaches a CheckpointStorage backend.
func (b *WorkflowBuilder) WithCheckpointStorage(s CheckpointStorage) *WorkflowBuilder {
	b.checkpointStore = s
	return b
}

// Build validates the accumulated graph and, if no fatal ValidationError
// was found, returns a ready-to-run Workflow. Non-fatal warnings are
// returned as the second value even on success, so callers can inspect
// them without treating the build as failed; on a validation failure they
// are also attached to the returned *BuildError.
func (b *WorkflowBuilder) Build(opts ...Option) (*Workflow, []*ValidationWarning, error) {
	if b.deferredErr != nil {
		return nil, nil, b.deferredErr
	}
	v := NewWorkflowGraphValidator(b.executors, b.groups, b.startExecutorID)
	errs, warnings := v.Validate()
	if len(errs) > 0 {
		return nil, warnings, &BuildError{Errors: errs, Warnings: warnings}
	}

	cfg := newWorkflowConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, warnings, err
		}
	}

	runner := NewRunner(b.executors, b.groups, b.startExecutorID, b.requestInfo)
	wf := &Workflow{
		id:              b.workflowID,
		executors:       b.executors,
		edgeGroups:      b.groups,
		startExecutorID: b.startExecutorID,
		runner:          runner,
		maxIterations:   b.maxIterations,
		storage:         b.checkpointStore,
		requestInfo:     b.requestInfo,
		config:          cfg,
	}
	return wf, warnings, nil
}
