package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptSnapshotKey returns the cache key for a student's durable
// attempt snapshot (the session store entry).
func (r *CacheKeyStruct) AttemptSnapshotKey(examID, studentID string) string {
	return fmt.Sprintf("student:%s:exam:%s:snapshot", studentID, examID)
}

// ExamPayloadKey returns the cache key for an exam's published payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ExamRoomChannel returns the Redis PubSub channel name that mirrors
// one exam room's realtime traffic across server instances.
func (r *CacheKeyStruct) ExamRoomChannel(examID string) string {
	return fmt.Sprintf("exam:%s:room", examID)
}

var CacheKey = NewCacheKeyStruct()
