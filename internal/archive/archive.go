package archive

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Input layout constants, fixed by the export format.
const (
	dataDir     = "data"
	accountFile = "account.js"

	followingFile = "following.js"
	followerFile  = "follower.js"
	dmFile        = "direct-messages.js"
	dmGroupFile   = "direct-messages-group.js"

	dmMediaDir      = "direct_messages_media"
	dmGroupMediaDir = "direct_messages_group_media"
)

// The tweet file and media dir names drift between export versions.
var (
	tweetFileTemplates = []string{"tweet.js", "tweets.js", "tweets-part*.js"}
	tweetMediaDirs     = []string{"tweet_media", "tweets_media"}
)

// Archive is an extracted export. Extraction is idempotent: re-opening the
// same archive into the same work directory reuses existing files.
type Archive struct {
	root       string
	data       string
	tweetFiles []string
	mediaDir   string
}

// Open extracts the zip at archivePath into workDir and validates the
// export layout. The owner account file and at least one tweet file are
// required; their absence is an ErrArchiveCorrupt failure.
func Open(archivePath, workDir string) (*Archive, error) {
	if !strings.EqualFold(filepath.Ext(archivePath), ".zip") {
		return nil, fmt.Errorf("%w: %s is not a zip file", ErrArchiveCorrupt, archivePath)
	}
	base := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	root := filepath.Join(workDir, base)
	if err := extract(archivePath, root); err != nil {
		return nil, err
	}

	a := &Archive{root: root, data: filepath.Join(root, dataDir)}
	if _, err := os.Stat(filepath.Join(a.data, accountFile)); err != nil {
		return nil, fmt.Errorf("%w: missing %s/%s", ErrArchiveCorrupt, dataDir, accountFile)
	}
	for _, tmpl := range tweetFileTemplates {
		m, _ := filepath.Glob(filepath.Join(a.data, tmpl))
		a.tweetFiles = append(a.tweetFiles, m...)
	}
	sort.Strings(a.tweetFiles)
	if len(a.tweetFiles) == 0 {
		return nil, fmt.Errorf("%w: no tweet files matching %v", ErrArchiveCorrupt, tweetFileTemplates)
	}
	for _, d := range tweetMediaDirs {
		if fi, err := os.Stat(filepath.Join(a.data, d)); err == nil && fi.IsDir() {
			a.mediaDir = filepath.Join(a.data, d)
			break
		}
	}
	return a, nil
}

// Root returns the extraction directory.
func (a *Archive) Root() string { return a.root }

func extract(archivePath, root string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		rel := filepath.Clean(f.Name)
		if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			return fmt.Errorf("%w: entry escapes archive: %s", ErrArchiveCorrupt, f.Name)
		}
		dest := filepath.Join(root, rel)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		// Reuse already-extracted content so re-runs are cheap and safe.
		if fi, err := os.Stat(dest); err == nil && fi.Size() == int64(f.UncompressedSize64) {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, dest); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrArchiveCorrupt, f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// ReadCategory parses one category file per the export wrapper convention
// and returns its records in export order. A category whose file is absent
// yields an empty record list; a file that cannot be parsed yields a
// CategoryParseError naming the category.
func (a *Archive) ReadCategory(name string) (RawCategoryFile, error) {
	out := RawCategoryFile{Category: name}
	var paths []string
	switch name {
	case CategoryAccount:
		paths = []string{filepath.Join(a.data, accountFile)}
	case CategoryTweets:
		paths = a.tweetFiles
	case CategoryFollowing:
		paths = []string{filepath.Join(a.data, followingFile)}
	case CategoryFollowers:
		paths = []string{filepath.Join(a.data, followerFile)}
	case CategoryDMs:
		paths = []string{filepath.Join(a.data, dmFile)}
	case CategoryGroupDMs:
		paths = []string{filepath.Join(a.data, dmGroupFile)}
	default:
		return out, &CategoryParseError{Category: name, Err: fmt.Errorf("unknown category")}
	}
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return out, &CategoryParseError{Category: name, Err: err}
		}
		records, err := decodeExportPayload(b)
		if err != nil {
			return out, &CategoryParseError{Category: name, Err: err}
		}
		out.Records = append(out.Records, records...)
	}
	return out, nil
}

// Account returns the export owner's identity.
func (a *Archive) Account() (RawAccount, error) {
	raw, err := a.ReadCategory(CategoryAccount)
	if err != nil {
		return RawAccount{}, err
	}
	if len(raw.Records) == 0 {
		return RawAccount{}, fmt.Errorf("%w: empty %s", ErrArchiveCorrupt, accountFile)
	}
	var w rawAccountWrapper
	if err := json.Unmarshal(raw.Records[0], &w); err != nil {
		return RawAccount{}, &CategoryParseError{Category: CategoryAccount, Err: err}
	}
	if w.Account.Username == "" {
		return RawAccount{}, &CategoryParseError{Category: CategoryAccount, Err: fmt.Errorf("missing username")}
	}
	return w.Account, nil
}

// Tweets returns all tweet records across the archive's tweet files.
func (a *Archive) Tweets() ([]RawTweet, error) {
	raw, err := a.ReadCategory(CategoryTweets)
	if err != nil {
		return nil, err
	}
	out := make([]RawTweet, 0, len(raw.Records))
	for _, rec := range raw.Records {
		var w rawTweetWrapper
		if err := json.Unmarshal(rec, &w); err != nil {
			return nil, &CategoryParseError{Category: CategoryTweets, Err: err}
		}
		if w.Tweet != nil {
			out = append(out, *w.Tweet)
			continue
		}
		var t RawTweet
		if err := json.Unmarshal(rec, &t); err != nil {
			return nil, &CategoryParseError{Category: CategoryTweets, Err: err}
		}
		out = append(out, t)
	}
	return out, nil
}

// Following returns the following-list entries plus the declared record
// count (the export-side count, before malformed entries are dropped).
func (a *Archive) Following() ([]RawFollow, int, error) {
	raw, err := a.ReadCategory(CategoryFollowing)
	if err != nil {
		return nil, 0, err
	}
	out := make([]RawFollow, 0, len(raw.Records))
	for _, rec := range raw.Records {
		var w rawFollowingWrapper
		if err := json.Unmarshal(rec, &w); err != nil {
			return nil, 0, &CategoryParseError{Category: CategoryFollowing, Err: err}
		}
		if w.Following != nil && w.Following.AccountID != "" {
			out = append(out, *w.Following)
		}
	}
	return out, len(raw.Records), nil
}

// Followers returns the follower-list entries plus the declared record count.
func (a *Archive) Followers() ([]RawFollow, int, error) {
	raw, err := a.ReadCategory(CategoryFollowers)
	if err != nil {
		return nil, 0, err
	}
	out := make([]RawFollow, 0, len(raw.Records))
	for _, rec := range raw.Records {
		var w rawFollowerWrapper
		if err := json.Unmarshal(rec, &w); err != nil {
			return nil, 0, &CategoryParseError{Category: CategoryFollowers, Err: err}
		}
		if w.Follower != nil && w.Follower.AccountID != "" {
			out = append(out, *w.Follower)
		}
	}
	return out, len(raw.Records), nil
}

// DirectMessages returns the one-to-one conversation threads.
func (a *Archive) DirectMessages() ([]RawConversation, error) {
	return a.conversations(CategoryDMs)
}

// GroupDirectMessages returns the group conversation threads.
func (a *Archive) GroupDirectMessages() ([]RawConversation, error) {
	return a.conversations(CategoryGroupDMs)
}

func (a *Archive) conversations(category string) ([]RawConversation, error) {
	raw, err := a.ReadCategory(category)
	if err != nil {
		return nil, err
	}
	out := make([]RawConversation, 0, len(raw.Records))
	for _, rec := range raw.Records {
		var w rawConversationWrapper
		if err := json.Unmarshal(rec, &w); err != nil {
			return nil, &CategoryParseError{Category: category, Err: err}
		}
		if w.DMConversation != nil && w.DMConversation.ID != "" {
			out = append(out, *w.DMConversation)
		}
	}
	return out, nil
}

// MaterializeMedia copies every media asset (tweet, DM and group-DM media)
// into outDir/media and returns archive filename -> local path. Colliding
// names are overwritten; a source dir that does not exist is skipped.
func (a *Archive) MaterializeMedia(outDir string) (map[string]string, error) {
	destDir := filepath.Join(outDir, "media")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}
	sources := []string{
		filepath.Join(a.data, dmMediaDir),
		filepath.Join(a.data, dmGroupMediaDir),
	}
	if a.mediaDir != "" {
		sources = append([]string{a.mediaDir}, sources...)
	}
	paths := make(map[string]string)
	for _, src := range sources {
		entries, err := os.ReadDir(src)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			dest := filepath.Join(destDir, e.Name())
			if err := copyFile(filepath.Join(src, e.Name()), dest); err != nil {
				return nil, err
			}
			paths[e.Name()] = dest
		}
	}
	return paths, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
