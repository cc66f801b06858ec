package tasks

// DefineTasks registers all available tasks
func DefineTasks(r *Registry) *Registry {
	r.Register(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)
	r.Register(ReportLogoutTask.TaskID(), ReportLogoutTask.HandleExecution)
	r.Register(PruneSessionLogsTask.TaskID(), PruneSessionLogsTask.HandleExecution)
	return r
}
