package swarm

import "sort"

// rolePriorities fixes the dispatch order for sequential execution.
var rolePriorities = map[Role]int{
	RoleMaster:     1,
	RoleSearch:     2,
	RoleInnovation: 3,
	RoleAnalysis:   4,
}

// Distribute turns a plan into one immutable task descriptor per required
// role, sorted by ascending priority. It performs no I/O and cannot fail.
func Distribute(q Query, plan *ExecutionPlan) []Task {
	tasks := make([]Task, 0, len(plan.Roles))

	for _, role := range plan.Roles {
		task := Task{
			Role:     role,
			Priority: rolePriorities[role],
		}
		switch role {
		case RoleMaster:
			task.Hints = map[string]string{
				"focus":      "orchestration",
				"query_type": plan.QueryType,
				"strategy":   string(plan.Strategy),
			}
		case RoleSearch:
			task.Hints = map[string]string{"focus": "academic_sources"}
		case RoleInnovation:
			task.Hints = map[string]string{"approach": "first_principles"}
		case RoleAnalysis:
			task.Hints = map[string]string{"depth": "critical_inquiry"}
		}
		tasks = append(tasks, task)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Priority < tasks[j].Priority
	})
	return tasks
}
