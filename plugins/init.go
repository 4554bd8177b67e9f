// Package plugins registers all built-in plugins.
package plugins

import (
	"firestige.xyz/hfinger/pkg/plugin"
	"firestige.xyz/hfinger/plugins/reporter/console"
	"firestige.xyz/hfinger/plugins/reporter/file"
	"firestige.xyz/hfinger/plugins/reporter/kafka"
	"firestige.xyz/hfinger/plugins/reporter/nats"
)

func init() {
	plugin.RegisterReporter("console", console.NewConsoleReporter)
	plugin.RegisterReporter("file", file.NewFileReporter)
	plugin.RegisterReporter("kafka", kafka.NewKafkaReporter)
	plugin.RegisterReporter("nats", nats.NewNATSReporter)
}
