// Package tools provides the built-in lesson tools: Bash, Glob and Read.
//
//	a := agent.NewAgent()
//	tools.RegisterAll(a.Tools())
//
// Relative paths and the shell's working directory follow
// [agent.WithContextWorkDir]; extra environment variables come from
// [agent.WithContextEnv]. Inside an agent run Bash also exports
// AGENT_SESSION_ID and AGENT_RUN_ID, matching ResultEvent.SessionID and
// ResultEvent.RunID.
package tools
