package usecase

// AnalyzeLocally is exported for testing
var AnalyzeLocally = analyzeLocally

// AccomplishmentFingerprint is exported for testing
var AccomplishmentFingerprint = accomplishmentFingerprint

// AnalysisReportSchema is exported for testing
var AnalysisReportSchema = analysisReportSchema
