package config

type WorkerKeyStruct struct {
	PersistEventsQueue    string
	PersistSnapshotsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistEventsQueue:    "persist_events_queue",
	PersistSnapshotsQueue: "persist_snapshots_queue",
}
