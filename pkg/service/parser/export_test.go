package parser

// SplitItems is exported for testing
var SplitItems = (*Parser).splitItems

// ExtractStatus is exported for testing
var ExtractStatus = extractStatus

// SplitSentences is exported for testing
var SplitSentences = splitSentences

// ExtractProject is exported for testing
var ExtractProject = (*Parser).extractProject
