package testresults

import (
	"path"
	"regexp"
	"strings"

	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

var (
	extPattern       = regexp.MustCompile(`^[a-z0-9]{1,8}$`)
	namespacePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,72}$`)
)

// objectKey builds test-recordings/{namespace}/{uuid}.{ext}. Keys are never reused.
func (s *Service) objectKey(namespace string, f domain.FileType, fileName string) (string, error) {
	if !namespacePattern.MatchString(namespace) {
		return "", domain.Invalidf("invalid uploader namespace")
	}
	return path.Join(s.Settings.KeyPrefix, namespace, s.newID()+"."+extensionFor(f, fileName)), nil
}

// namespacePrefix is the key prefix owned by one uploader.
func (s *Service) namespacePrefix(namespace string) string {
	return s.Settings.KeyPrefix + "/" + namespace + "/"
}

// checkKeyInNamespace rejects keys that point outside the caller's prefix.
func (s *Service) checkKeyInNamespace(namespace, label, key string) error {
	if key == "" {
		return domain.Invalidf("%s key is empty", label)
	}
	if strings.Contains(key, "..") || !strings.HasPrefix(key, s.namespacePrefix(namespace)) {
		return domain.Forbiddenf("%s key is outside the uploader namespace", label)
	}
	return nil
}

func extensionFor(f domain.FileType, fileName string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	if extPattern.MatchString(ext) {
		return ext
	}
	return f.DefaultExtension()
}
