package config

type WorkerKeyStruct struct {
	PersistResultsQueue       string
	PersistSubmissionsQueue   string
	PersistProctorEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResultsQueue:       "persist_results_queue",
	PersistSubmissionsQueue:   "persist_submissions_queue",
	PersistProctorEventsQueue: "persist_proctor_events_queue",
}
