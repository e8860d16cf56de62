package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultLocation is the location served when no config file declares any.
const DefaultLocation = "hls"

// ErrMissingSecretKey is returned when encryption is enabled without a secret key.
var ErrMissingSecretKey = errors.New(`"secret_key" must be set when "encryption_method" is not none`)

// HLS is the fully resolved packager configuration of one location.
type HLS struct {
	AbsoluteMasterURLs bool
	AbsoluteIndexURLs  bool
	AbsoluteIframeURLs bool

	MasterFileNamePrefix  string
	IndexFileNamePrefix   string
	IframesFileNamePrefix string
	SegmentFileNamePrefix string
	EncryptionKeyFileName string

	InterleaveFrames bool
	EncryptionMethod string
	SecretKey        string
	SegmentDuration  time.Duration
	SegmentsBaseURL  string
	HTTPSHeaderName  string
}

// Overrides is one configuration layer. Nil fields inherit from the parent.
type Overrides struct {
	AbsoluteMasterURLs *bool `yaml:"absolute_master_urls"`
	AbsoluteIndexURLs  *bool `yaml:"absolute_index_urls"`
	AbsoluteIframeURLs *bool `yaml:"absolute_iframe_urls"`

	MasterFileNamePrefix  *string `yaml:"master_file_name_prefix"`
	IndexFileNamePrefix   *string `yaml:"index_file_name_prefix"`
	IframesFileNamePrefix *string `yaml:"iframes_file_name_prefix"`
	SegmentFileNamePrefix *string `yaml:"segment_file_name_prefix"`
	EncryptionKeyFileName *string `yaml:"encryption_key_file_name"`

	InterleaveFrames *bool          `yaml:"interleave_frames"`
	EncryptionMethod *string        `yaml:"encryption_method"`
	SecretKey        *string        `yaml:"secret_key"`
	SegmentDuration  *time.Duration `yaml:"segment_duration"`
	SegmentsBaseURL  *string        `yaml:"segments_base_url"`
	HTTPSHeaderName  *string        `yaml:"https_header_name"`
}

// Defaults returns the root layer every location inherits from.
func Defaults() HLS {
	return HLS{
		AbsoluteMasterURLs:    true,
		AbsoluteIndexURLs:     true,
		AbsoluteIframeURLs:    false,
		MasterFileNamePrefix:  "master",
		IndexFileNamePrefix:   "index",
		IframesFileNamePrefix: "iframes",
		SegmentFileNamePrefix: "seg",
		EncryptionKeyFileName: "encryption",
		InterleaveFrames:      false,
		EncryptionMethod:      "none",
		SegmentDuration:       10 * time.Second,
	}
}

// Merge returns parent with every field set in child applied. Neither input
// is modified.
func Merge(parent HLS, child Overrides) HLS {
	out := parent
	mergeBool(&out.AbsoluteMasterURLs, child.AbsoluteMasterURLs)
	mergeBool(&out.AbsoluteIndexURLs, child.AbsoluteIndexURLs)
	mergeBool(&out.AbsoluteIframeURLs, child.AbsoluteIframeURLs)
	mergeString(&out.MasterFileNamePrefix, child.MasterFileNamePrefix)
	mergeString(&out.IndexFileNamePrefix, child.IndexFileNamePrefix)
	mergeString(&out.IframesFileNamePrefix, child.IframesFileNamePrefix)
	mergeString(&out.SegmentFileNamePrefix, child.SegmentFileNamePrefix)
	mergeString(&out.EncryptionKeyFileName, child.EncryptionKeyFileName)
	mergeBool(&out.InterleaveFrames, child.InterleaveFrames)
	mergeString(&out.EncryptionMethod, child.EncryptionMethod)
	mergeString(&out.SecretKey, child.SecretKey)
	mergeString(&out.SegmentsBaseURL, child.SegmentsBaseURL)
	mergeString(&out.HTTPSHeaderName, child.HTTPSHeaderName)
	if child.SegmentDuration != nil {
		out.SegmentDuration = *child.SegmentDuration
	}
	return out
}

func mergeBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func mergeString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Validate checks cross-field constraints.
func (h HLS) Validate() error {
	if !strings.EqualFold(h.EncryptionMethod, "none") && h.EncryptionMethod != "" && h.SecretKey == "" {
		return ErrMissingSecretKey
	}
	if h.SegmentDuration <= 0 {
		return fmt.Errorf("segment_duration must be positive, got %s", h.SegmentDuration)
	}
	for name, v := range map[string]string{
		"master_file_name_prefix":  h.MasterFileNamePrefix,
		"index_file_name_prefix":   h.IndexFileNamePrefix,
		"iframes_file_name_prefix": h.IframesFileNamePrefix,
		"segment_file_name_prefix": h.SegmentFileNamePrefix,
		"encryption_key_file_name": h.EncryptionKeyFileName,
	} {
		if strings.Contains(v, "/") {
			return fmt.Errorf("%s must not contain '/'", name)
		}
	}
	return nil
}

// File is the YAML layout: a defaults layer and named location layers.
type File struct {
	Defaults  Overrides            `yaml:"defaults"`
	Locations map[string]Overrides `yaml:"locations"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseFile(data)
}

// ParseFile decodes YAML configuration.
func ParseFile(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse config: %w", err)
	}
	return f, nil
}

// Resolve merges Defaults, the file's defaults layer, env, and every location
// layer in that order, validating each result.
func (f File) Resolve(env Overrides) (map[string]HLS, error) {
	base := Merge(Merge(Defaults(), f.Defaults), env)

	names := make([]string, 0, len(f.Locations))
	for name := range f.Locations {
		names = append(names, name)
	}
	if len(names) == 0 {
		names = append(names, DefaultLocation)
	}
	sort.Strings(names)

	out := make(map[string]HLS, len(names))
	for _, name := range names {
		h := Merge(base, f.Locations[name])
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("location %q: %w", name, err)
		}
		out[name] = h
	}
	return out, nil
}

// EnvOverrides builds a layer from environment variables. Unset variables
// leave the field nil.
func EnvOverrides() Overrides {
	var o Overrides
	o.EncryptionMethod = envString("HLS_ENCRYPTION_METHOD")
	o.SecretKey = envString("VOD_SECRET_KEY")
	o.SegmentsBaseURL = envString("SEGMENTS_BASE_URL")
	o.HTTPSHeaderName = envString("HTTPS_HEADER_NAME")
	o.AbsoluteMasterURLs = envBool("HLS_ABSOLUTE_MASTER_URLS")
	o.AbsoluteIndexURLs = envBool("HLS_ABSOLUTE_INDEX_URLS")
	o.AbsoluteIframeURLs = envBool("HLS_ABSOLUTE_IFRAME_URLS")
	o.InterleaveFrames = envBool("HLS_INTERLEAVE_FRAMES")
	o.SegmentDuration = envDuration("SEGMENT_DURATION")
	return o
}

func envDuration(key string) *time.Duration {
	if os.Getenv(key) == "" {
		return nil
	}
	d := GetEnvDuration(key, 0)
	if d <= 0 {
		return nil
	}
	return &d
}

func envString(key string) *string {
	if s := os.Getenv(key); s != "" {
		return &s
	}
	return nil
}

func envBool(key string) *bool {
	if _, ok := os.LookupEnv(key); !ok {
		return nil
	}
	b := GetEnvBool(key, false)
	return &b
}
