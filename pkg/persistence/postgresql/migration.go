package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflow_templates (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'active', 'paused', 'completed', 'cancelled')),
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_templates_status ON workflow_templates(status);
			CREATE INDEX idx_workflow_templates_created_at ON workflow_templates(created_at);

			-- Positions may have gaps after a removal, so uniqueness is not enforced here.
			CREATE TABLE workflow_steps (
				template_id VARCHAR(255) NOT NULL REFERENCES workflow_templates(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				position INT NOT NULL CHECK (position > 0),
				step_type VARCHAR(50) NOT NULL CHECK (step_type IN ('manual', 'automatic', 'conditional', 'parallel')),
				assignee VARCHAR(255),
				assignees JSONB,
				estimated_duration BIGINT,
				PRIMARY KEY (template_id, id)
			);

			CREATE INDEX idx_workflow_steps_template_position ON workflow_steps(template_id, position);
		`,
		2: `
			CREATE TABLE workflow_submissions (
				id VARCHAR(255) PRIMARY KEY,
				sequence BIGSERIAL UNIQUE,
				template_id VARCHAR(255) NOT NULL REFERENCES workflow_templates(id),
				submittable_kind VARCHAR(50) NOT NULL,
				submittable_id VARCHAR(255) NOT NULL,
				submitted_by VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'in_progress', 'waiting_for_approval', 'approved', 'rejected', 'returned_for_revision', 'completed', 'cancelled')),
				priority VARCHAR(20) NOT NULL CHECK (priority IN ('low', 'normal', 'high', 'urgent')),
				current_step_id VARCHAR(255),
				submitted_at TIMESTAMP WITH TIME ZONE NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				decided_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				decision VARCHAR(50) CHECK (decision IN ('approved', 'rejected', 'returned_for_revision')),
				decision_comment TEXT NOT NULL DEFAULT '',
				decided_by VARCHAR(255),
				due_date TIMESTAMP WITH TIME ZONE,
				approvals JSONB,
				notes TEXT NOT NULL DEFAULT '',
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_submissions_template_submittable
				ON workflow_submissions(template_id, submittable_kind, submittable_id);
			CREATE INDEX idx_workflow_submissions_status ON workflow_submissions(status);
			CREATE INDEX idx_workflow_submissions_due_date ON workflow_submissions(due_date);
		`,
		3: `
			CREATE TABLE documents (
				id VARCHAR(255) PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				owner_id VARCHAR(255) NOT NULL,
				writers JSONB,
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published', 'locked', 'archived')),
				locked_by VARCHAR(255),
				locked_at TIMESTAMP WITH TIME ZONE,
				lock_reason TEXT,
				unlock_scheduled_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				-- the lock group is written together: holder and time exist exactly while locked
				CONSTRAINT documents_lock_group CHECK (
					(status = 'locked') = (locked_by IS NOT NULL AND locked_at IS NOT NULL)
					AND (locked_by IS NOT NULL OR (lock_reason IS NULL AND unlock_scheduled_at IS NULL))
				)
			);

			CREATE INDEX idx_documents_status ON documents(status);
			CREATE INDEX idx_documents_owner_id ON documents(owner_id);
			CREATE INDEX idx_documents_unlock_scheduled_at ON documents(unlock_scheduled_at) WHERE status = 'locked';
		`,
	}
}
