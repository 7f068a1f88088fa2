package config

import "time"

var Redactor = redactor

func NewLoggerForTest(level, format, output string, stacktrace bool) *Logger {
	return &Logger{level: level, format: format, output: output, stacktrace: stacktrace}
}

func NewGraphForTest(baseURL string, pageSize int, emailDomain, timezone string) *Graph {
	return &Graph{baseURL: baseURL, timeout: time.Second, pageSize: pageSize, emailDomain: emailDomain, timezone: timezone}
}

func NewRepositoryForTest(backend, projectID string) *Repository {
	return &Repository{backend: backend, projectID: projectID}
}

func NewCacheForTest(backend, addr string) *Cache {
	return &Cache{backend: backend, addr: addr}
}

func NewParserForTest(path string) *Parser {
	return &Parser{path: path}
}

func NewLLMForTest(projectID, location string) *LLM {
	return &LLM{projectID: projectID, location: location}
}
