// Command transkribator runs the background job worker and offers operator
// commands for inspecting and seeding the job queue.
//
//	transkribator worker            run the worker loop
//	transkribator queue list|show|stats|release|enqueue|enqueue-media
//	transkribator config init|validate
//	transkribator test-notify
//
// Every command reads the TOML configuration (see `config init`) and honours
// the DATABASE_URL, JOB_* and service credential environment variables.
package main
