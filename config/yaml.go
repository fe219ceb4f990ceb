package config

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// YAML IMPORT / EXPORT
// =============================================================================

// Bundle is the on-disk form of all scoring documents. Absent sections are
// left untouched on import.
type Bundle struct {
	SIP         *SIPConfig         `yaml:"sip,omitempty"`
	Insurance   *InsuranceConfig   `yaml:"insurance,omitempty"`
	Referral    *ReferralConfig    `yaml:"referral,omitempty"`
	Leaderboard *LeaderboardConfig `yaml:"leaderboard,omitempty"`
}

func (b *Bundle) documents() []Document {
	var docs []Document
	if b.SIP != nil {
		if b.SIP.ID == "" {
			b.SIP.ID = string(DomainSIP)
		}
		docs = append(docs, b.SIP)
	}
	if b.Insurance != nil {
		if b.Insurance.ID == "" {
			b.Insurance.ID = string(DomainInsurance)
		}
		docs = append(docs, b.Insurance)
	}
	if b.Referral != nil {
		if b.Referral.ID == "" {
			b.Referral.ID = string(DomainReferral)
		}
		docs = append(docs, b.Referral)
	}
	if b.Leaderboard != nil {
		if b.Leaderboard.ID == "" {
			b.Leaderboard.ID = string(DomainLeaderboard)
		}
		docs = append(docs, b.Leaderboard)
	}
	return docs
}

// ImportYAML decodes a Bundle and saves every section it contains. Nothing
// is written unless every section validates. Returns the number of
// documents saved.
func ImportYAML(ctx context.Context, r *Resolver, in io.Reader) (int, error) {
	var b Bundle
	if err := yaml.NewDecoder(in).Decode(&b); err != nil {
		return 0, fmt.Errorf("decode config yaml: %w", err)
	}

	docs := b.documents()
	for _, doc := range docs {
		if err := r.check(doc); err != nil {
			return 0, err
		}
	}
	for i, doc := range docs {
		if err := r.Save(ctx, doc); err != nil {
			return i, err
		}
	}
	r.logger.Info("imported config", "documents", len(docs))
	return len(docs), nil
}

// ExportYAML writes the resolved documents, bootstrapping any that are missing.
func ExportYAML(ctx context.Context, r *Resolver, out io.Writer) error {
	var b Bundle
	var err error
	if b.SIP, err = r.LoadSIP(ctx); err != nil {
		return err
	}
	if b.Insurance, err = r.LoadInsurance(ctx); err != nil {
		return err
	}
	if b.Referral, err = r.LoadReferral(ctx); err != nil {
		return err
	}
	if b.Leaderboard, err = r.LoadLeaderboard(ctx); err != nil {
		return err
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(&b); err != nil {
		return fmt.Errorf("encode config yaml: %w", err)
	}
	return enc.Close()
}
