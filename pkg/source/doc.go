// Package source resolves pipeline references to local files.
//
// A plain path is used as is. A git:: reference names a file inside a Git
// repository, checked out into a local cache:
//
//	git::https://github.com/lab/pipelines.git//umi/umi.yaml?ref=v2
//	git::git@github.com:lab/pipelines.git//umi/umi.yaml
//	git::/srv/git/pipelines//umi.yaml?ref=dev
//
// The part before the second "//" is the repository, the part after it the
// file path inside the repository, and ref selects the branch (default
// from configuration). Whitelist files named by the pipeline resolve
// relative to the checked out file, so a repository carries its pipelines
// and whitelists together.
//
// # Usage
//
//	r := source.NewResolver(&cfg.Sources.Git, logger)
//	res, err := r.Resolve(ctx, "git::https://github.com/lab/pipelines.git//umi.yaml")
//	if err != nil {
//		return err
//	}
//	p, err := runner.Load(res.Path, opts)
//
// Each repository and branch pair gets its own checkout under the cache
// directory. The first resolve clones, later ones pull. In offline mode an
// existing checkout is used as is.
//
// # Authentication
//
//   - none: public repositories and local paths
//   - token: HTTPS basic auth with an access token
//   - ssh: public key authentication from a key file
package source
