package cli

var RunWithWriter = run

var IndexConfig = indexConfig
