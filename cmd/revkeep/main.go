// revkeep prunes old content revisions according to per-content-type
// retention policies.
//
// Usage:
//
//	# Run the scheduler, metrics endpoint and config watcher
//	revkeep run --config /etc/revkeep/revkeep.yaml
//
//	# Preview what a policy would delete
//	revkeep candidates article
//
//	# Delete the candidates of one content type
//	revkeep prune article
//
//	# Delete every revision older than revision 120 of record 42
//	revkeep delete-prior 42 120
//
//	# Manage policies and global settings
//	revkeep policy set article --keep 5 --minimum-age "3 months"
//	revkeep frequency every_week
package main

func main() {
	Execute()
}
