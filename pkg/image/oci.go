package image

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/containerd/containerd/remotes"
	"github.com/containerd/containerd/remotes/docker"
	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// OCIOptions configures an oci:// fetch. CredentialStore is only consulted
// when DangerousOptions is set, matching §4.3's "optionally reads a
// registry credential store when a dangerous-options flag is set".
type OCIOptions struct {
	DangerousOptions bool
	CredentialStore  func(host string) (user, secret string, err error)
}

// NewFileReaderOCI resolves an oci://registry/repo[:tag|@digest] reference
// to a single-layer blob and returns a FileReader backed by it. Per §4.3,
// when the URL carries a tag rather than a digest, the manifest is
// resolved and must list exactly one layer.
//
// The blob is fetched once via containerd's registry client, its digest
// verified against the resolved descriptor, and spooled to a local
// temporary file; subsequent reads are served from that file exactly like
// the file:// variant, rather than re-issuing registry requests per range
// (containerd's remotes.Fetcher does not expose partial blob fetches).
func NewFileReaderOCI(ctx context.Context, u *url.URL, opts OCIOptions) (FileReader, error) {
	host := u.Host
	repo := strings.TrimPrefix(u.Path, "/")
	tag, dgst, repo := splitReference(repo)

	resolverOpts := docker.ResolverOptions{}
	if opts.DangerousOptions && opts.CredentialStore != nil {
		resolverOpts.Hosts = docker.ConfigureDefaultRegistries(
			docker.WithAuthorizer(docker.NewDockerAuthorizer(docker.WithAuthCreds(opts.CredentialStore))),
		)
	}
	resolver := docker.NewResolver(resolverOpts)

	ref := host + "/" + repo
	if dgst != "" {
		ref = ref + "@" + dgst
	} else if tag != "" {
		ref = ref + ":" + tag
	} else {
		ref = ref + ":latest"
	}

	_, desc, err := resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolving oci reference %q: %w", ref, err)
	}

	if desc.MediaType == ocispec.MediaTypeImageManifest || desc.MediaType == ocispec.MediaTypeImageIndex {
		desc, err = resolveSingleLayer(ctx, resolver, ref, desc)
		if err != nil {
			return nil, err
		}
	}

	fetcher, err := resolver.Fetcher(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("constructing oci fetcher for %q: %w", ref, err)
	}

	return spoolBlob(ctx, fetcher, desc)
}

// resolveSingleLayer fetches ref's manifest and returns its sole layer
// descriptor, failing if the manifest lists anything other than exactly
// one layer (§4.3, §8 "OCI digest resolution").
func resolveSingleLayer(ctx context.Context, resolver remotes.Resolver, ref string, manifestDesc ocispec.Descriptor) (ocispec.Descriptor, error) {
	fetcher, err := resolver.Fetcher(ctx, ref)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("constructing oci fetcher for %q: %w", ref, err)
	}
	rc, err := fetcher.Fetch(ctx, manifestDesc)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("fetching oci manifest %q: %w", ref, err)
	}
	defer rc.Close()

	var manifest ocispec.Manifest
	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("decoding oci manifest %q: %w", ref, err)
	}
	if len(manifest.Layers) != 1 {
		return ocispec.Descriptor{}, fmt.Errorf("oci manifest %q has %d layers, expected exactly 1", ref, len(manifest.Layers))
	}
	return manifest.Layers[0], nil
}

// spoolBlob downloads desc's content in full, verifying its digest as it
// streams, and returns a FileReader over the resulting local file.
func spoolBlob(ctx context.Context, fetcher remotes.Fetcher, desc ocispec.Descriptor) (FileReader, error) {
	rc, err := fetcher.Fetch(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("fetching oci blob %s: %w", desc.Digest, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "hostd-oci-blob-*")
	if err != nil {
		return nil, fmt.Errorf("creating oci blob spool file: %w", err)
	}
	path := tmp.Name()

	verifier := desc.Digest.Verifier()
	if _, err := io.Copy(tmp, io.TeeReader(rc, verifier)); err != nil {
		tmp.Close()
		os.Remove(path)
		return nil, fmt.Errorf("spooling oci blob %s: %w", desc.Digest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("closing oci blob spool file: %w", err)
	}
	if !verifier.Verified() {
		os.Remove(path)
		return nil, fmt.Errorf("oci blob %s failed digest verification", desc.Digest)
	}

	return newFileReaderFile(path)
}

// splitReference separates a "repo[:tag][@digest]" path into its repo,
// optional tag, and optional digest components.
func splitReference(path string) (tag string, dgst string, repo string) {
	repo = path
	if i := strings.LastIndex(repo, "@"); i >= 0 {
		candidate := repo[i+1:]
		if _, err := digest.Parse(candidate); err == nil {
			dgst = candidate
			repo = repo[:i]
		}
	}
	if i := strings.LastIndex(repo, ":"); i >= 0 && !strings.Contains(repo[i:], "/") {
		tag = repo[i+1:]
		repo = repo[:i]
	}
	return tag, dgst, repo
}
