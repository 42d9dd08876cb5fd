// Copyright 2021 Converter Systems LLC. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/awcullen/uastack/client"
	"github.com/awcullen/uastack/ua"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var browseCmd = &cobra.Command{
	Use:   "browse [node-id]",
	Short: "Browse the hierarchy below a node",
	Long: `Browse the hierarchical references of a node, following continuation
points until every reference is returned. The default node is the Objects folder.

Examples:
  uaclient browse
  uaclient browse "ns=2;s=Demo" --depth 2`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

var (
	browseDepth          int
	browseMaxReferences  uint32
	nodeClassNamesByMask = map[ua.NodeClass]string{
		ua.NodeClassObject:        "Object",
		ua.NodeClassVariable:      "Variable",
		ua.NodeClassMethod:        "Method",
		ua.NodeClassObjectType:    "ObjectType",
		ua.NodeClassVariableType:  "VariableType",
		ua.NodeClassReferenceType: "ReferenceType",
		ua.NodeClassDataType:      "DataType",
		ua.NodeClassView:          "View",
	}
)

func init() {
	browseCmd.Flags().IntVarP(&browseDepth, "depth", "d", 1, "number of levels to browse")
	browseCmd.Flags().Uint32Var(&browseMaxReferences, "max-references", 0, "maximum references per response (0 = server limit)")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	var root ua.NodeID = ua.ObjectIDObjectsFolder
	if len(args) == 1 {
		ids, err := parseNodeIDs(args)
		if err != nil {
			return err
		}
		root = ids[0]
	}
	ctx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("timeout")*4)
	defer cancel()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	return browseTree(ctx, c, cmd.OutOrStdout(), root, 0)
}

func browseTree(ctx context.Context, c *client.Client, w io.Writer, id ua.NodeID, level int) error {
	if level >= browseDepth {
		return nil
	}
	refs, err := browseAll(ctx, c, id)
	if err != nil {
		return err
	}
	for _, r := range refs {
		fmt.Fprintf(w, "%s%s (%s) %s\n", strings.Repeat("  ", level), r.DisplayName.Text, nodeClassNamesByMask[r.NodeClass], r.NodeID)
		if r.NodeID.ServerIndex != 0 {
			continue
		}
		if err := browseTree(ctx, c, w, ua.ToNodeID(r.NodeID, c.NamespaceURIs()), level+1); err != nil {
			return err
		}
	}
	return nil
}

// browseAll returns the forward hierarchical references of the node, calling BrowseNext until the
// continuation point is exhausted.
func browseAll(ctx context.Context, c *client.Client, id ua.NodeID) ([]ua.ReferenceDescription, error) {
	res, err := c.Browse(ctx, &ua.BrowseRequest{
		RequestedMaxReferencesPerNode: browseMaxReferences,
		NodesToBrowse: []ua.BrowseDescription{
			{
				NodeID:          id,
				BrowseDirection: ua.BrowseDirectionForward,
				ReferenceTypeID: ua.ReferenceTypeIDHierarchicalReferences,
				IncludeSubtypes: true,
				ResultMask:      uint32(ua.BrowseResultMaskAll),
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(res.Results) != 1 {
		return nil, ua.BadUnexpectedError
	}
	result := res.Results[0]
	if result.StatusCode.IsBad() {
		return nil, result.StatusCode
	}
	refs := result.References
	for len(result.ContinuationPoint) > 0 {
		next, err := c.BrowseNext(ctx, &ua.BrowseNextRequest{
			ContinuationPoints: []ua.ByteString{result.ContinuationPoint},
		})
		if err != nil {
			return nil, err
		}
		if len(next.Results) != 1 {
			return nil, ua.BadUnexpectedError
		}
		result = next.Results[0]
		if result.StatusCode.IsBad() {
			return nil, result.StatusCode
		}
		refs = append(refs, result.References...)
	}
	return refs, nil
}
