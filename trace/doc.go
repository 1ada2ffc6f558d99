/*
 * doc.go, part of ensrest.
 *
 * Copyright 2026 The ensrest developers
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

//Package trace implements the ensemble-restraint rotation history, a
//compressed text format holding every window a run produced. It aims to be
//very easy to read and write, so readers can be implemented in other
//languages for later analysis, while staying small on disk thanks to the
//compression layer.
//
//Format: the file extension picks the codec (erh: flate, zerh: zstd,
//gerh: gzip, lerh: lzw). The decompressed stream is ASCII text. It starts
//with a header of zero or more key=value metadata lines, closed by a line
//"** nbins binwidth sigma" describing the grid every frame uses. Each frame
//is then a line "* window replica time" followed by nbins decimal values,
//one per line. Frames from different replicas may interleave; the info line
//says who wrote what.
package trace
